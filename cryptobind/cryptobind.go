// Package cryptobind binds the envelope to a passphrase-based authenticated
// encryption scheme (age's scrypt passphrase recipient) and generates
// BIP-39 mnemonic passphrases when the caller doesn't supply one.
package cryptobind

import (
	"bytes"
	"errors"
	"io"

	"filippo.io/age"
	"github.com/tyler-smith/go-bip39"

	"github.com/ethernity-paper/ethernity/bounds"
	"github.com/ethernity-paper/ethernity/errtag"
)

// DefaultMnemonicWords is used when the caller asks for a generated
// passphrase without specifying a strength.
const DefaultMnemonicWords = 24

var mnemonicStrengthBits = map[int]int{
	12: 128,
	15: 160,
	18: 192,
	21: 224,
	24: 256,
}

// GeneratePassphrase returns a fresh BIP-39 English mnemonic at the
// requested word count (one of 12, 15, 18, 21, 24).
func GeneratePassphrase(words int) (string, error) {
	strength, ok := mnemonicStrengthBits[words]
	if !ok {
		return "", errtag.New(errtag.InvalidInput, "passphrase words must be one of 12, 15, 18, 21, 24").
			WithField("words")
	}
	entropy, err := bip39.NewEntropy(strength)
	if err != nil {
		return "", errtag.Wrap(errtag.Crypto, err, "generating mnemonic entropy")
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errtag.Wrap(errtag.Crypto, err, "generating mnemonic")
	}
	return mnemonic, nil
}

// Encrypt authenticates and encrypts envelopeBytes under passphrase. If
// passphrase is empty, a fresh mnemonic is generated at mnemonicWords
// strength (DefaultMnemonicWords if mnemonicWords is zero) and used
// instead. Returns the ciphertext and the passphrase that was actually
// used.
func Encrypt(envelopeBytes []byte, passphrase string, mnemonicWords int) ([]byte, string, error) {
	if passphrase == "" {
		words := mnemonicWords
		if words == 0 {
			words = DefaultMnemonicWords
		}
		generated, err := GeneratePassphrase(words)
		if err != nil {
			return nil, "", err
		}
		passphrase = generated
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, "", errtag.Wrap(errtag.Crypto, err, "building age passphrase recipient")
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, "", errtag.Wrap(errtag.Crypto, err, "opening age ciphertext stream")
	}
	if _, err := w.Write(envelopeBytes); err != nil {
		return nil, "", errtag.Wrap(errtag.Crypto, err, "writing age plaintext")
	}
	if err := w.Close(); err != nil {
		return nil, "", errtag.Wrap(errtag.Crypto, err, "closing age ciphertext stream")
	}

	ciphertext := buf.Bytes()
	if len(ciphertext) > bounds.MaxCiphertextBytes {
		return nil, "", errtag.New(errtag.Bounds, "ciphertext exceeds the maximum size").
			WithLimit("MaxCiphertextBytes")
	}
	return ciphertext, passphrase, nil
}

const decryptionFailedField = "decryption"

func wrapDecryptionFailure(cause error) error {
	return errtag.Wrap(errtag.Crypto, cause, "decryption failed: wrong passphrase or corrupted ciphertext").
		WithField(decryptionFailedField)
}

// IsDecryptionFailed reports whether err is the distinct authentication
// failure Decrypt returns for a wrong passphrase or corrupted ciphertext,
// as opposed to some other framing or I/O error.
func IsDecryptionFailed(err error) bool {
	var e *errtag.Error
	if errors.As(err, &e) {
		return e.Kind == errtag.Crypto && e.Field == decryptionFailedField
	}
	return false
}

// Decrypt authenticates and decrypts ciphertext under passphrase.
func Decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	if len(ciphertext) > bounds.MaxCiphertextBytes {
		return nil, errtag.New(errtag.Bounds, "ciphertext exceeds the maximum size").
			WithLimit("MaxCiphertextBytes")
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, errtag.Wrap(errtag.Crypto, err, "building age passphrase identity")
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, wrapDecryptionFailure(err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapDecryptionFailure(err)
	}
	return data, nil
}
