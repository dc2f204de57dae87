// Package chunk splits a payload into a sequence of near-equal frames and
// reassembles it from frames collected in any order, tolerating
// byte-identical duplicates.
package chunk

import (
	"bytes"

	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/frame"
)

// Split divides payload into ceil(len(payload)/chunkSize) frames. The
// first (len(payload) mod total) frames carry one extra byte each, so the
// distribution is stable and left-weighted.
func Split(payload []byte, docID [frame.DocIDLen]byte, frameType frame.Type, chunkSize int) ([]frame.Frame, error) {
	if len(payload) == 0 {
		return nil, errtag.New(errtag.InvalidInput, "payload cannot be empty")
	}
	if chunkSize <= 0 {
		return nil, errtag.New(errtag.InvalidInput, "chunk_size must be positive")
	}

	total := (len(payload) + chunkSize - 1) / chunkSize
	base := len(payload) / total
	remainder := len(payload) % total

	frames := make([]frame.Frame, 0, total)
	offset := 0
	for i := 0; i < total; i++ {
		size := base
		if i < remainder {
			size++
		}
		frames = append(frames, frame.Frame{
			Version:   frame.Version,
			FrameType: frameType,
			DocID:     docID,
			Index:     uint64(i),
			Total:     uint64(total),
			Data:      payload[offset : offset+size],
		})
		offset += size
	}
	return frames, nil
}

// Reassemble recombines frames into the original payload. Frames may arrive
// in any order; a repeated (type, index, doc_id) is accepted only if every
// copy carries identical data. Missing indices, or any mismatch in type,
// doc_id, total, or version across the set, is an error.
func Reassemble(frames []frame.Frame, expectedDocID [frame.DocIDLen]byte, expectedType frame.Type) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errtag.New(errtag.InvalidInput, "no frames provided")
	}

	total := frames[0].Total
	version := frames[0].Version

	seen := make(map[uint64]frame.Frame, total)
	for _, f := range frames {
		if f.DocID != expectedDocID {
			return nil, errtag.New(errtag.Integrity, "mismatched doc_id").WithField("doc_id")
		}
		if f.FrameType != expectedType {
			return nil, errtag.New(errtag.Integrity, "mismatched frame_type").WithField("frame_type")
		}
		if f.Total != total {
			return nil, errtag.New(errtag.Integrity, "mismatched total").WithField("total")
		}
		if f.Version != version {
			return nil, errtag.New(errtag.Integrity, "mismatched version").WithField("version")
		}
		if existing, ok := seen[f.Index]; ok {
			if !bytes.Equal(existing.Data, f.Data) {
				return nil, errtag.New(errtag.Integrity, "duplicate frame index with conflicting data").
					WithField("index").WithIndex(int(f.Index))
			}
			continue
		}
		seen[f.Index] = f
	}

	if uint64(len(seen)) != total {
		return nil, errtag.New(errtag.Integrity, "missing frame indices")
	}

	out := make([]byte, 0)
	for i := uint64(0); i < total; i++ {
		out = append(out, seen[i].Data...)
	}
	return out, nil
}
