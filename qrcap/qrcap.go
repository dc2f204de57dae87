// Package qrcap chooses a chunk size that keeps every resulting frame inside
// the capacity of a caller-supplied QR rasterizer. It never renders a QR
// symbol itself; the actual rasterizer sits behind the Generator interface.
package qrcap

import (
	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/frame"
	"github.com/ethernity-paper/ethernity/qrpayload"
)

// Generator reports whether a QR-payload string fits the caller's current
// symbol settings (error-correction level, version pin, mask, micro, boost).
// QR rasterization itself is out of scope for this module; implementations
// live on the caller side.
type Generator interface {
	Fits(payload string) bool
}

// ChooseChunkSize returns the largest chunk size no greater than
// preferredChunkSize for which every resulting MAIN frame, sized against a
// worst-case (all 0xFF) data block, fits the generator's capacity. It first
// tries preferredChunkSize directly, then binary-searches downward.
func ChooseChunkSize(payloadLen, preferredChunkSize int, docID [frame.DocIDLen]byte, frameType frame.Type, gen Generator) (int, error) {
	if payloadLen <= 0 {
		return 0, errtag.New(errtag.InvalidInput, "payload_len must be positive")
	}
	if preferredChunkSize <= 0 {
		return 0, errtag.New(errtag.InvalidInput, "preferred_chunk_size must be positive")
	}
	if gen == nil {
		return 0, errtag.New(errtag.InvalidInput, "qr generator must not be nil")
	}

	chunkSize := preferredChunkSize
	if chunkSize > payloadLen {
		chunkSize = payloadLen
	}

	for {
		total := ceilDiv(payloadLen, chunkSize)
		maxDataLen := maxFrameDataLen(payloadLen, total)
		if fitsQRFrame(maxDataLen, total, docID, frameType, gen) {
			return chunkSize, nil
		}
		next, err := maxFittingFrameDataLen(maxDataLen, total, docID, frameType, gen)
		if err != nil {
			return 0, err
		}
		chunkSize = next
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func maxFrameDataLen(payloadLen, total int) int {
	base := payloadLen / total
	if payloadLen%total != 0 {
		base++
	}
	return base
}

// fitsQRFrame builds the worst-case frame for the given data length (index
// pinned to the last position, data all 0xFF) and asks gen whether its
// QR-payload encoding fits.
func fitsQRFrame(dataLen, total int, docID [frame.DocIDLen]byte, frameType frame.Type, gen Generator) bool {
	if dataLen <= 0 || total <= 0 {
		return false
	}
	data := make([]byte, dataLen)
	for i := range data {
		data[i] = 0xff
	}
	f := frame.Frame{
		Version:   frame.Version,
		FrameType: frameType,
		DocID:     docID,
		Index:     uint64(total - 1),
		Total:     uint64(total),
		Data:      data,
	}
	encoded, err := frame.Encode(f)
	if err != nil {
		return false
	}
	payload, err := qrpayload.Encode(encoded, qrpayload.Base64)
	if err != nil {
		return false
	}
	return gen.Fits(payload)
}

func maxFittingFrameDataLen(upper, total int, docID [frame.DocIDLen]byte, frameType frame.Type, gen Generator) (int, error) {
	if !fitsQRFrame(1, total, docID, frameType, gen) {
		return 0, errtag.New(errtag.Bounds,
			"QR settings cannot encode even the smallest frame payload; increase QR version or lower error correction")
	}

	lower, upperBound := 1, upper
	for lower < upperBound {
		mid := (lower + upperBound + 1) / 2
		if fitsQRFrame(mid, total, docID, frameType, gen) {
			lower = mid
		} else {
			upperBound = mid - 1
		}
	}
	return lower, nil
}
