// Package envelope packs a set of named byte payloads into a single framed
// blob: a canonical-CBOR manifest (path, size, SHA-256, mtime per file, plus
// an optional embedded signing seed) followed by the concatenated file
// contents in manifest order.
package envelope

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"strings"

	"github.com/ethernity-paper/ethernity/bounds"
	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/internal/cborcodec"
	"github.com/ethernity-paper/ethernity/internal/varint"
)

// Magic identifies an encoded envelope.
var Magic = []byte("AY")

// Version is the only envelope format version understood today.
const Version = 1

// ManifestVersion is the only manifest format version understood today.
const ManifestVersion = 1

// SigningSeedLen is the fixed width of an embedded (unsealed) signing seed.
const SigningSeedLen = 32

// ManifestFile describes one packed file.
type ManifestFile struct {
	Path  string `cbor:"path"`
	Size  uint64 `cbor:"size"`
	Hash  []byte `cbor:"hash"`
	MTime *int64 `cbor:"mtime"`
}

// Manifest is the canonical-CBOR-encoded header of an envelope.
type Manifest struct {
	Version   int            `cbor:"version"`
	CreatedAt int64          `cbor:"created"`
	Sealed    bool           `cbor:"sealed"`
	Seed      []byte         `cbor:"seed"`
	Files     []ManifestFile `cbor:"files"`
}

// Part is one caller-supplied input to Build: a path, its bytes, and an
// optional modification time.
type Part struct {
	Path  string
	Data  []byte
	MTime *int64
}

// ExtractedFile pairs a manifest entry with its re-verified bytes.
type ExtractedFile struct {
	File ManifestFile
	Data []byte
}

func normalizePath(path string) (string, error) {
	if path == "" {
		return "", errtag.New(errtag.InvalidInput, "manifest path must not be empty").WithField("path")
	}
	if len(path) > bounds.MaxPathBytes {
		return "", errtag.New(errtag.Bounds, "manifest path exceeds the maximum byte length").
			WithField("path").WithLimit("MaxPathBytes")
	}
	if strings.HasPrefix(path, "/") {
		return "", errtag.New(errtag.InvalidInput, "manifest path must not be absolute").WithField("path")
	}
	for _, segment := range strings.Split(path, "/") {
		switch segment {
		case "":
			return "", errtag.New(errtag.InvalidInput, "manifest path must not contain empty segments").WithField("path")
		case ".", "..":
			return "", errtag.New(errtag.InvalidInput, "manifest path must not contain . or .. components").WithField("path")
		}
	}
	return path, nil
}

// Build normalizes and sorts parts by path, rejects duplicate paths,
// concatenates their bytes into a payload, and assembles the Manifest that
// describes it. If sealed is true, signingSeed must be nil; otherwise it
// must be exactly SigningSeedLen bytes.
func Build(parts []Part, sealed bool, signingSeed []byte, createdAt int64) (Manifest, []byte, error) {
	if len(parts) == 0 {
		return Manifest{}, nil, errtag.New(errtag.InvalidInput, "at least one payload part is required")
	}
	if len(parts) > bounds.MaxManifestFiles {
		return Manifest{}, nil, errtag.New(errtag.Bounds, "too many manifest files").
			WithLimit("MaxManifestFiles")
	}
	if sealed {
		if signingSeed != nil {
			return Manifest{}, nil, errtag.New(errtag.InvalidInput, "sealed manifests must not include a seed")
		}
	} else {
		if len(signingSeed) != SigningSeedLen {
			return Manifest{}, nil, errtag.New(errtag.InvalidInput, "unsealed manifests must include a 32-byte seed").
				WithField("seed")
		}
	}

	type normalized struct {
		path string
		part Part
	}
	entries := make([]normalized, len(parts))
	for i, p := range parts {
		path, err := normalizePath(p.Path)
		if err != nil {
			return Manifest{}, nil, err
		}
		entries[i] = normalized{path: path, part: p}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	seen := make(map[string]struct{}, len(entries))
	files := make([]ManifestFile, 0, len(entries))
	payload := make([]byte, 0)
	for _, e := range entries {
		if _, dup := seen[e.path]; dup {
			return Manifest{}, nil, errtag.New(errtag.InvalidInput, "duplicate manifest path").WithField("path")
		}
		seen[e.path] = struct{}{}

		sum := sha256.Sum256(e.part.Data)
		files = append(files, ManifestFile{
			Path:  e.path,
			Size:  uint64(len(e.part.Data)),
			Hash:  sum[:],
			MTime: e.part.MTime,
		})
		payload = append(payload, e.part.Data...)
	}

	var seed []byte
	if !sealed {
		seed = append([]byte(nil), signingSeed...)
	}

	manifest := Manifest{
		Version:   ManifestVersion,
		CreatedAt: createdAt,
		Sealed:    sealed,
		Seed:      seed,
		Files:     files,
	}
	return manifest, payload, nil
}

func encodeManifest(m Manifest) ([]byte, error) {
	codec, err := cborcodec.New()
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "initializing cbor codec")
	}
	encoded, err := codec.Marshal(m)
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "encoding manifest")
	}
	if len(encoded) > bounds.MaxManifestCBORBytes {
		return nil, errtag.New(errtag.Bounds, "manifest exceeds the maximum encoded size").
			WithLimit("MaxManifestCBORBytes")
	}
	return encoded, nil
}

func decodeManifest(data []byte) (Manifest, error) {
	if len(data) > bounds.MaxManifestCBORBytes {
		return Manifest{}, errtag.New(errtag.Bounds, "manifest exceeds the maximum encoded size").
			WithLimit("MaxManifestCBORBytes")
	}
	codec, err := cborcodec.New()
	if err != nil {
		return Manifest{}, errtag.Wrap(errtag.Codec, err, "initializing cbor codec")
	}
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return Manifest{}, errtag.Wrap(errtag.Codec, err, "decoding manifest")
	}
	if m.Version != ManifestVersion {
		return Manifest{}, errtag.New(errtag.Codec, "unsupported manifest version").WithField("version")
	}
	if m.Sealed && m.Seed != nil {
		return Manifest{}, errtag.New(errtag.Codec, "sealed manifest must not carry a seed").WithField("seed")
	}
	if !m.Sealed && len(m.Seed) != SigningSeedLen {
		return Manifest{}, errtag.New(errtag.Codec, "unsealed manifest must carry a 32-byte seed").WithField("seed")
	}
	if len(m.Files) == 0 {
		return Manifest{}, errtag.New(errtag.Codec, "manifest files are required").WithField("files")
	}
	if len(m.Files) > bounds.MaxManifestFiles {
		return Manifest{}, errtag.New(errtag.Bounds, "manifest files exceed the maximum count").
			WithLimit("MaxManifestFiles")
	}
	seen := make(map[string]struct{}, len(m.Files))
	for _, f := range m.Files {
		if _, err := normalizePath(f.Path); err != nil {
			return Manifest{}, err
		}
		if len(f.Hash) != sha256.Size {
			return Manifest{}, errtag.New(errtag.Codec, "manifest file hash must be 32 bytes").WithField("hash")
		}
		if _, dup := seen[f.Path]; dup {
			return Manifest{}, errtag.New(errtag.Codec, "duplicate manifest file path").WithField("path")
		}
		seen[f.Path] = struct{}{}
	}
	return m, nil
}

// Pack encodes manifest and payload into the envelope's framed wire form:
//
//	"AY" || uvarint(version) || uvarint(len(manifest)) || manifest ||
//	uvarint(len(payload)) || payload
func Pack(manifest Manifest, payload []byte) ([]byte, error) {
	manifestBytes, err := encodeManifest(manifest)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(Magic)+10+10+len(manifestBytes)+10+len(payload))
	out = append(out, Magic...)
	out = varint.EncodeUint(out, uint64(Version))
	out = varint.EncodeUint(out, uint64(len(manifestBytes)))
	out = append(out, manifestBytes...)
	out = varint.EncodeUint(out, uint64(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// Unpack parses and validates an encoded envelope, returning its manifest
// and payload.
func Unpack(data []byte) (Manifest, []byte, error) {
	if len(data) < len(Magic)+1 {
		return Manifest{}, nil, errtag.New(errtag.Codec, "envelope too short")
	}
	if !bytes.Equal(data[:len(Magic)], Magic) {
		return Manifest{}, nil, errtag.New(errtag.Codec, "invalid envelope magic")
	}
	idx := len(Magic)

	version, idx, err := varint.Decode(data, idx)
	if err != nil {
		return Manifest{}, nil, errtag.Wrap(errtag.Codec, err, "decoding envelope version")
	}
	if version != Version {
		return Manifest{}, nil, errtag.New(errtag.Codec, "unsupported envelope version").WithField("version")
	}

	manifestLen, idx, err := varint.Decode(data, idx)
	if err != nil {
		return Manifest{}, nil, errtag.Wrap(errtag.Codec, err, "decoding manifest length")
	}
	if manifestLen > bounds.MaxManifestCBORBytes {
		return Manifest{}, nil, errtag.New(errtag.Bounds, "manifest exceeds the maximum encoded size").
			WithLimit("MaxManifestCBORBytes")
	}
	manifestEnd := idx + int(manifestLen)
	if manifestEnd > len(data) {
		return Manifest{}, nil, errtag.New(errtag.Codec, "truncated manifest")
	}
	manifest, err := decodeManifest(data[idx:manifestEnd])
	if err != nil {
		return Manifest{}, nil, err
	}
	idx = manifestEnd

	payloadLen, idx, err := varint.Decode(data, idx)
	if err != nil {
		return Manifest{}, nil, errtag.Wrap(errtag.Codec, err, "decoding payload length")
	}
	payloadEnd := idx + int(payloadLen)
	if payloadEnd != len(data) {
		return Manifest{}, nil, errtag.New(errtag.Codec, "envelope payload length mismatch")
	}
	payload := append([]byte(nil), data[idx:payloadEnd]...)
	return manifest, payload, nil
}

// ExtractParts slices payload according to manifest's file sizes (in
// manifest order) and re-verifies each file's SHA-256, failing on any
// mismatch or leftover suffix.
func ExtractParts(manifest Manifest, payload []byte) ([]ExtractedFile, error) {
	out := make([]ExtractedFile, 0, len(manifest.Files))
	offset := 0
	for _, f := range manifest.Files {
		end := offset + int(f.Size)
		if end > len(payload) {
			return nil, errtag.New(errtag.Integrity, "manifest file exceeds payload size").WithField(f.Path)
		}
		data := payload[offset:end]
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], f.Hash) {
			return nil, errtag.New(errtag.Integrity, "sha256 mismatch for manifest file").WithField(f.Path)
		}
		out = append(out, ExtractedFile{File: f, Data: append([]byte(nil), data...)})
		offset = end
	}
	if offset != len(payload) {
		return nil, errtag.New(errtag.Integrity, "payload length does not match manifest sizes")
	}
	return out, nil
}
