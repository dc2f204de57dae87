// Package frame implements the on-QR/on-paper wire unit: a CRC-guarded,
// magic-prefixed binary frame carrying one chunk of a larger payload (or a
// complete single-frame payload, for AUTH and KEY documents).
package frame

import (
	"bytes"
	"hash/crc32"

	"github.com/ethernity-paper/ethernity/bounds"
	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/internal/varint"
)

// Magic identifies an encoded frame.
var Magic = []byte("AP")

// Version is the only frame format version understood today.
const Version = 1

// DocIDLen is the fixed width of a Frame's document id.
const DocIDLen = 8

// CRCLen is the width of the trailing CRC-32 field.
const CRCLen = 4

// Type identifies what an frame carries.
type Type byte

const (
	// MainDocument carries a chunk of ciphertext.
	MainDocument Type = 0x44 // 'D'
	// KeyDocument carries a signed ShardPayload.
	KeyDocument Type = 0x4B // 'K'
	// Auth carries a signed AuthPayload.
	Auth Type = 0x41 // 'A'
)

func (t Type) valid() bool {
	switch t {
	case MainDocument, KeyDocument, Auth:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case MainDocument:
		return "MAIN"
	case KeyDocument:
		return "KEY"
	case Auth:
		return "AUTH"
	default:
		return "UNKNOWN"
	}
}

// Per-type data caps (spec §3).
const (
	MaxMainDataBytes = 1 << 20 // 1 MiB
	MaxAuthDataBytes = 512
	MaxKeyDataBytes  = 2048
)

// Frame is the fully-decoded, validated atomic wire unit.
type Frame struct {
	Version   int
	FrameType Type
	DocID     [DocIDLen]byte
	Index     uint64
	Total     uint64
	Data      []byte
}

func maxData(t Type) int {
	switch t {
	case MainDocument:
		return MaxMainDataBytes
	case Auth:
		return MaxAuthDataBytes
	case KeyDocument:
		return MaxKeyDataBytes
	default:
		return 0
	}
}

func validate(f Frame) error {
	if f.Version != Version {
		return errtag.New(errtag.Codec, "unsupported frame version").WithField("version")
	}
	if !f.FrameType.valid() {
		return errtag.New(errtag.Codec, "unsupported frame type").WithField("frame_type")
	}
	if f.Total == 0 {
		return errtag.New(errtag.InvalidInput, "total must be at least 1").WithField("total")
	}
	if f.Index >= f.Total {
		return errtag.New(errtag.InvalidInput, "index must be < total").WithField("index")
	}
	if f.FrameType == Auth || f.FrameType == KeyDocument {
		if f.Total != 1 || f.Index != 0 {
			return errtag.New(errtag.InvalidInput,
				f.FrameType.String()+" frames must have index=0, total=1").WithField("index")
		}
	}
	if f.FrameType == MainDocument && f.Total > bounds.MaxMainFrameTotal {
		return errtag.New(errtag.Bounds, "MAIN frame total exceeds the maximum").
			WithField("total").WithLimit("MaxMainFrameTotal")
	}
	if cap := maxData(f.FrameType); len(f.Data) > cap {
		return errtag.New(errtag.Bounds, f.FrameType.String()+" data exceeds the per-type cap").
			WithField("data").WithLimit("per-type cap")
	}
	return nil
}

// Encode validates f and serializes it to its wire form:
//
//	"AP" || uvarint(version) || byte(type) || doc_id || uvarint(index) ||
//	uvarint(total) || uvarint(len(data)) || data || CRC32-BE(body)
func Encode(f Frame) ([]byte, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	var err error
	body := make([]byte, 0, len(Magic)+1+1+DocIDLen+10+10+10+len(f.Data))
	body = append(body, Magic...)
	body, err = varint.Encode(body, int64(f.Version))
	if err != nil {
		return nil, errtag.Wrap(errtag.InvalidInput, err, "encoding frame version")
	}
	body = append(body, byte(f.FrameType))
	body = append(body, f.DocID[:]...)
	body = varint.EncodeUint(body, f.Index)
	body = varint.EncodeUint(body, f.Total)
	body = varint.EncodeUint(body, uint64(len(f.Data)))
	body = append(body, f.Data...)
	crc := crc32.ChecksumIEEE(body)
	out := make([]byte, len(body)+CRCLen)
	copy(out, body)
	out[len(body)+0] = byte(crc >> 24)
	out[len(body)+1] = byte(crc >> 16)
	out[len(body)+2] = byte(crc >> 8)
	out[len(body)+3] = byte(crc)
	return out, nil
}

// Decode parses and fully validates an encoded frame, including its CRC.
func Decode(payload []byte) (Frame, error) {
	if len(payload) < len(Magic)+CRCLen {
		return Frame{}, errtag.New(errtag.Codec, "frame too short")
	}
	idx := 0
	if !bytes.Equal(payload[:len(Magic)], Magic) {
		return Frame{}, errtag.New(errtag.Codec, "bad magic")
	}
	idx += len(Magic)

	version, idx, err := varint.Decode(payload, idx)
	if err != nil {
		return Frame{}, errtag.Wrap(errtag.Codec, err, "decoding frame version")
	}
	if version != Version {
		return Frame{}, errtag.New(errtag.Codec, "unsupported frame version").WithField("version")
	}
	if idx >= len(payload) {
		return Frame{}, errtag.New(errtag.Codec, "missing frame type")
	}
	frameType := Type(payload[idx])
	idx++
	if !frameType.valid() {
		return Frame{}, errtag.New(errtag.Codec, "unsupported frame type").WithField("frame_type")
	}

	if idx+DocIDLen > len(payload) {
		return Frame{}, errtag.New(errtag.Codec, "missing doc_id")
	}
	var docID [DocIDLen]byte
	copy(docID[:], payload[idx:idx+DocIDLen])
	idx += DocIDLen

	index, idx, err := varint.Decode(payload, idx)
	if err != nil {
		return Frame{}, errtag.Wrap(errtag.Codec, err, "decoding frame index")
	}
	total, idx, err := varint.Decode(payload, idx)
	if err != nil {
		return Frame{}, errtag.Wrap(errtag.Codec, err, "decoding frame total")
	}
	dataLen, idx, err := varint.Decode(payload, idx)
	if err != nil {
		return Frame{}, errtag.Wrap(errtag.Codec, err, "decoding frame data length")
	}

	if idx+int(dataLen)+CRCLen != len(payload) {
		return Frame{}, errtag.New(errtag.Codec, "frame length mismatch")
	}
	data := payload[idx : idx+int(dataLen)]
	idx += int(dataLen)

	crcExpected := uint32(payload[idx])<<24 | uint32(payload[idx+1])<<16 |
		uint32(payload[idx+2])<<8 | uint32(payload[idx+3])
	crcActual := crc32.ChecksumIEEE(payload[:idx])
	if crcExpected != crcActual {
		return Frame{}, errtag.New(errtag.Codec, "crc mismatch")
	}

	f := Frame{
		Version:   int(version),
		FrameType: frameType,
		DocID:     docID,
		Index:     index,
		Total:     total,
		Data:      append([]byte(nil), data...),
	}
	if err := validate(f); err != nil {
		return Frame{}, err
	}
	return f, nil
}
