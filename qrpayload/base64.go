package qrpayload

import (
	"encoding/base64"
	"strings"

	"github.com/ethernity-paper/ethernity/errtag"
)

var stdEncoding = base64.StdEncoding

func decodeBase64(payload string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(payload))
	for _, r := range payload {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()
	if len(cleaned) > MaxPayloadChars {
		return nil, errtag.New(errtag.Bounds, "QR payload exceeds maximum length").
			WithLimit("MaxPayloadChars")
	}
	// Normalize URL-safe alphabet to standard, then reconstruct padding.
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(cleaned)
	normalized = strings.TrimRight(normalized, "=")
	if padding := (4 - len(normalized)%4) % 4; padding != 0 {
		normalized += strings.Repeat("=", padding)
	}
	data, err := stdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "invalid base64 QR payload")
	}
	return data, nil
}
