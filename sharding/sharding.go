// Package sharding implements (t, n) Shamir threshold secret sharing over
// GF(2^8), applied independently to each byte of 16-byte blocks, so that
// variable-length secrets (a passphrase or a signing seed) can be split
// across n shares and recombined from any t of them.
package sharding

import (
	"crypto/rand"

	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/internal/cborcodec"
	"github.com/ethernity-paper/ethernity/internal/gf256"
	"github.com/ethernity-paper/ethernity/signing"
)

const (
	// ShardVersion is the only ShardPayload format version understood
	// today.
	ShardVersion = 1
	// BlockSize is the width each secret is padded to before sharing.
	BlockSize = 16
	// MaxShares is the largest share_count or threshold allowed; a byte's
	// worth of non-zero field elements (x = 1..255).
	MaxShares = 255
)

// KeyType distinguishes what kind of secret a ShardPayload carries.
type KeyType string

const (
	KeyPassphrase  KeyType = "passphrase"
	KeySigningSeed KeyType = "signing-seed"
)

func (k KeyType) valid() bool {
	return k == KeyPassphrase || k == KeySigningSeed
}

// ShardPayload is one signed, self-describing share of a split secret.
type ShardPayload struct {
	Version    int     `cbor:"version"`
	Type       KeyType `cbor:"type"`
	Threshold  int     `cbor:"threshold"`
	ShareCount int     `cbor:"share_count"`
	ShareIndex int     `cbor:"share_index"`
	Length     int     `cbor:"length"`
	Share      []byte  `cbor:"share"`
	DocHash    []byte  `cbor:"hash"`
	SignPub    []byte  `cbor:"pub"`
	Signature  []byte  `cbor:"sig"`
}

func randomPolyCoeffs(degree int) ([]byte, error) {
	coeffs := make([]byte, degree)
	if degree == 0 {
		return coeffs, nil
	}
	if _, err := rand.Read(coeffs); err != nil {
		return nil, errtag.Wrap(errtag.Crypto, err, "generating shamir polynomial coefficients")
	}
	return coeffs, nil
}

// evalPoly evaluates constant + coeffs[0]*x + coeffs[1]*x^2 + ... at x in
// GF(2^8), accumulating successive powers of x term by term.
func evalPoly(constant byte, coeffs []byte, x byte) byte {
	result := constant
	power := x
	for _, c := range coeffs {
		result = gf256.Add(result, gf256.Mul(c, power))
		power = gf256.Mul(power, x)
	}
	return result
}

// Split divides secret into shares shares, any threshold of which can
// recombine it. The secret is padded with trailing zero bytes to a multiple
// of BlockSize; each byte position is shared independently over GF(2^8) by
// a random polynomial of degree threshold-1 whose constant term is that
// byte. Shares are indexed 1..shares.
func Split(secret []byte, threshold, shares int, keyType KeyType, docHash, signPub, signSeed []byte) ([]ShardPayload, error) {
	if len(secret) == 0 {
		return nil, errtag.New(errtag.InvalidInput, "secret cannot be empty")
	}
	if !keyType.valid() {
		return nil, errtag.New(errtag.InvalidInput, "unsupported shard key type").WithField("type")
	}
	if threshold <= 0 || shares <= 0 {
		return nil, errtag.New(errtag.InvalidInput, "threshold and shares must be positive")
	}
	if threshold > shares {
		return nil, errtag.New(errtag.InvalidInput, "threshold cannot exceed shares")
	}
	if threshold > MaxShares || shares > MaxShares {
		return nil, errtag.New(errtag.Bounds, "threshold and shares must not exceed MaxShares").
			WithLimit("MaxShares")
	}

	blockCount := (len(secret) + BlockSize - 1) / BlockSize
	padded := make([]byte, blockCount*BlockSize)
	copy(padded, secret)

	shareBytes := make([][]byte, shares)
	for i := range shareBytes {
		shareBytes[i] = make([]byte, 0, len(padded))
	}

	for _, b := range padded {
		coeffs, err := randomPolyCoeffs(threshold - 1)
		if err != nil {
			return nil, err
		}
		for i := 0; i < shares; i++ {
			x := byte(i + 1)
			shareBytes[i] = append(shareBytes[i], evalPoly(b, coeffs, x))
		}
	}

	if len(docHash) != signing.DocHashLen {
		return nil, errtag.New(errtag.InvalidInput, "doc_hash must be 32 bytes").WithField("doc_hash")
	}
	if len(signPub) != signing.PubLen {
		return nil, errtag.New(errtag.InvalidInput, "sign_pub must be 32 bytes").WithField("sign_pub")
	}

	payloads := make([]ShardPayload, shares)
	for i := 0; i < shares; i++ {
		index := i + 1
		sig, err := signing.SignShard(docHash, index, shareBytes[i], signSeed)
		if err != nil {
			return nil, err
		}
		payloads[i] = ShardPayload{
			Version:    ShardVersion,
			Type:       keyType,
			Threshold:  threshold,
			ShareCount: shares,
			ShareIndex: index,
			Length:     len(secret),
			Share:      shareBytes[i],
			DocHash:    docHash,
			SignPub:    signPub,
			Signature:  sig,
		}
	}
	return payloads, nil
}

// Combine recombines secret from a quorum of ShardPayloads, verifying that
// they are mutually consistent (same key type, threshold, share_count, and
// secret length; no duplicate indices). It does not itself verify
// signatures; callers should do so before trusting the shares (see
// VerifySignature).
func Combine(shares []ShardPayload, keyType KeyType) ([]byte, error) {
	if len(shares) == 0 {
		return nil, errtag.New(errtag.InvalidInput, "no shares provided")
	}
	threshold := shares[0].Threshold
	secretLen := shares[0].Length
	shareCount := shares[0].ShareCount

	seen := make(map[int]struct{}, len(shares))
	for _, s := range shares {
		if s.Type != keyType {
			return nil, errtag.New(errtag.Sharing, "shard key types do not match").WithField("type")
		}
		if s.Threshold != threshold {
			return nil, errtag.New(errtag.Sharing, "shard thresholds do not match").WithField("threshold")
		}
		if s.ShareCount != shareCount {
			return nil, errtag.New(errtag.Sharing, "shard share counts do not match").WithField("share_count")
		}
		if s.Length != secretLen {
			return nil, errtag.New(errtag.Sharing, "shard secret lengths do not match").WithField("length")
		}
		if len(s.Share)%BlockSize != 0 {
			return nil, errtag.New(errtag.Sharing, "shard share length must be a multiple of the block size").
				WithField("share")
		}
		if _, dup := seen[s.ShareIndex]; dup {
			return nil, errtag.New(errtag.Sharing, "duplicate shard index").WithField("share_index")
		}
		seen[s.ShareIndex] = struct{}{}
	}
	if len(shares) < threshold {
		return nil, errtag.New(errtag.Sharing, "not enough shares to recover the secret").
			WithField("threshold")
	}

	blockCount := (secretLen + BlockSize - 1) / BlockSize
	expectedLen := blockCount * BlockSize
	for _, s := range shares {
		if len(s.Share) != expectedLen {
			return nil, errtag.New(errtag.Sharing, "shard share length does not match the secret length").
				WithField("share")
		}
	}

	quorum := shares[:threshold]
	secret := make([]byte, 0, expectedLen)
	for pos := 0; pos < expectedLen; pos++ {
		secret = append(secret, interpolateAtZero(quorum, pos))
	}
	return secret[:secretLen], nil
}

// interpolateAtZero Lagrange-interpolates the polynomial implied by quorum
// at x=0, for the byte at the given offset within each share.
func interpolateAtZero(quorum []ShardPayload, offset int) byte {
	var result byte
	for i, si := range quorum {
		xi := byte(si.ShareIndex)
		yi := si.Share[offset]

		var numerator byte = 1
		var denominator byte = 1
		for j, sj := range quorum {
			if i == j {
				continue
			}
			xj := byte(sj.ShareIndex)
			numerator = gf256.Mul(numerator, xj)
			denominator = gf256.Mul(denominator, gf256.Add(xj, xi))
		}
		term := gf256.Mul(yi, gf256.Div(numerator, denominator))
		result = gf256.Add(result, term)
	}
	return result
}

// VerifySignature reports whether shard's embedded signature authenticates
// its (doc_hash, share_index, share) under its own sign_pub.
func VerifySignature(shard ShardPayload) bool {
	return signing.VerifyShard(shard.DocHash, shard.ShareIndex, shard.Share, shard.SignPub, shard.Signature)
}

// Encode serializes a ShardPayload as canonical CBOR.
func Encode(payload ShardPayload) ([]byte, error) {
	codec, err := cborcodec.New()
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "initializing cbor codec")
	}
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "encoding shard payload")
	}
	return encoded, nil
}

// Decode parses and fully validates an encoded ShardPayload, including
// range checks on threshold/share_count/share_index and the share/length
// relationship. It does not verify the signature.
func Decode(data []byte) (ShardPayload, error) {
	codec, err := cborcodec.New()
	if err != nil {
		return ShardPayload{}, errtag.Wrap(errtag.Codec, err, "initializing cbor codec")
	}
	var p ShardPayload
	if err := codec.Unmarshal(data, &p); err != nil {
		return ShardPayload{}, errtag.Wrap(errtag.Codec, err, "decoding shard payload")
	}

	if p.Version != ShardVersion {
		return ShardPayload{}, errtag.New(errtag.Codec, "unsupported shard payload version").WithField("version")
	}
	if !p.Type.valid() {
		return ShardPayload{}, errtag.New(errtag.Codec, "unsupported shard key type").WithField("type")
	}
	if p.Threshold <= 0 || p.Threshold > MaxShares {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard threshold out of range").WithField("threshold")
	}
	if p.ShareCount <= 0 || p.ShareCount > MaxShares {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard share_count out of range").WithField("share_count")
	}
	if p.ShareIndex <= 0 || p.ShareIndex > MaxShares {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard share_index out of range").WithField("share_index")
	}
	if p.Threshold > p.ShareCount {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard threshold cannot exceed share_count").
			WithField("threshold")
	}
	if p.ShareIndex > p.ShareCount {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard share_index cannot exceed share_count").
			WithField("share_index")
	}
	if p.Length <= 0 {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard length must be positive").WithField("length")
	}
	if len(p.Share) == 0 || len(p.Share)%BlockSize != 0 {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard share length must be a positive multiple of the block size").
			WithField("share")
	}
	if p.Length > len(p.Share) {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard length cannot exceed share length").WithField("length")
	}
	expectedLen := ((p.Length + BlockSize - 1) / BlockSize) * BlockSize
	if len(p.Share) != expectedLen {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard share length does not match the secret length").
			WithField("share")
	}
	if len(p.DocHash) != signing.DocHashLen {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard hash must be 32 bytes").WithField("hash")
	}
	if len(p.SignPub) != signing.PubLen {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard pub must be 32 bytes").WithField("pub")
	}
	if len(p.Signature) != signing.SigLen {
		return ShardPayload{}, errtag.New(errtag.Codec, "shard sig must be 64 bytes").WithField("sig")
	}
	return p, nil
}
