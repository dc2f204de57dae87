// Package cborcodec configures the single canonical CBOR encode/decode mode
// shared by the envelope manifest and the shard payload: sorted map keys,
// shortest-form integers, definite-length byte strings on encode; rejection
// of tags, indefinite lengths, and duplicate map keys on decode.
package cborcodec

import "github.com/fxamacker/cbor/v2"

// EncOptions is the canonical encoder configuration: deterministic output
// suitable for hashing and signing.
var EncOptions = cbor.CanonicalEncOptions()

// DecOptions rejects anything that would make decoding ambiguous or allow a
// crafted payload to smuggle data past validation: duplicate keys,
// indefinite-length items, and CBOR tags are all forbidden.
var DecOptions = cbor.DecOptions{
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	IndefLength: cbor.IndefLengthForbidden,
	TagsMd:      cbor.TagsForbidden,
	IntDec:      cbor.IntDecConvertNone,
}

// Codec bundles a ready-to-use canonical encode/decode mode pair.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// New builds a Codec from EncOptions/DecOptions.
func New() (Codec, error) {
	enc, err := EncOptions.EncMode()
	if err != nil {
		return Codec{}, err
	}
	dec, err := DecOptions.DecMode()
	if err != nil {
		return Codec{}, err
	}
	return Codec{enc: enc, dec: dec}, nil
}

// Marshal encodes v using the canonical encode mode.
func (c Codec) Marshal(v interface{}) ([]byte, error) {
	return c.enc.Marshal(v)
}

// Unmarshal decodes data into v using the strict decode mode.
func (c Codec) Unmarshal(data []byte, v interface{}) error {
	return c.dec.Unmarshal(data, v)
}
