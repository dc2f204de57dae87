// Package bounds centralizes the size caps referenced across the core
// packages, so a limit is defined exactly once regardless of how many
// codecs enforce it.
package bounds

const (
	// MaxCiphertextBytes is the largest ciphertext the encryption binding
	// will accept.
	MaxCiphertextBytes = 1 << 20 // 1 MiB

	// MaxMainFrameTotal caps how many MAIN frames a single document may be
	// chunked into.
	MaxMainFrameTotal = 4096

	// MaxManifestCBORBytes caps the encoded manifest size.
	MaxManifestCBORBytes = 1 << 20 // 1 MiB

	// MaxManifestFiles caps the number of files packed into one envelope.
	MaxManifestFiles = 2048

	// MaxPathBytes caps a manifest file path's UTF-8 byte length.
	MaxPathBytes = 512

	// MaxFallbackNormalizedChars caps the normalized (post lower-case,
	// post whitespace/hyphen stripping) character count accepted when
	// parsing fallback text.
	MaxFallbackNormalizedChars = 2_000_000

	// MaxFallbackLines caps how many lines a single fallback section may
	// contain.
	MaxFallbackLines = 50_000

	// MaxRecoveryTextBytes caps the raw (pre-normalization) UTF-8 byte
	// length of fallback text accepted for recovery.
	MaxRecoveryTextBytes = 10 * 1 << 20 // 10 MiB
)
