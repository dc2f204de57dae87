// Package qrpayload frames frame bytes for the QR transport: standard
// base64 with padding stripped on output, tolerant of standard, URL-safe,
// and padded input plus embedded whitespace on decode.
//
// The original implementation this module was distilled from exposed a
// pluggable encoder registry even though only one encoding was ever
// registered; per the redesign guidance this is a closed enum instead; add
// a new Encoding constant (and its case in Encode/Decode) rather than
// reopening a registry.
package qrpayload

import (
	"strings"

	"github.com/ethernity-paper/ethernity/errtag"
)

// Encoding identifies a QR payload framing. Base64 is the only member
// today; the wire format fixes it as the output encoding (spec §6).
type Encoding int

const (
	// Base64 is standard-alphabet base64 with '=' padding stripped.
	Base64 Encoding = iota + 1
)

// MaxPayloadChars bounds the normalized (whitespace-stripped) payload
// length accepted on decode.
const MaxPayloadChars = 3072

// Encode frames data as a QR payload string in the given encoding.
func Encode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case Base64:
		return strings.TrimRight(stdEncoding.EncodeToString(data), "="), nil
	default:
		return "", errtag.New(errtag.InvalidInput, "unsupported QR payload encoding")
	}
}

// Decode parses a QR payload string in the given encoding. It strips
// embedded whitespace and tolerates both standard and URL-safe alphabets
// and either padded or unpadded input.
func Decode(payload string, enc Encoding) ([]byte, error) {
	switch enc {
	case Base64:
		return decodeBase64(payload)
	default:
		return nil, errtag.New(errtag.InvalidInput, "unsupported QR payload encoding")
	}
}
