// Package backup composes every lower-level codec and primitive into the
// two top-level pipelines: Build turns a set of files into paper-ready
// artifacts (MAIN/AUTH/KEY frames plus fallback text), and Recover reverses
// the process from frames collected off paper.
package backup

import (
	"github.com/ethernity-paper/ethernity/chunk"
	"github.com/ethernity-paper/ethernity/cryptobind"
	"github.com/ethernity-paper/ethernity/docid"
	"github.com/ethernity-paper/ethernity/envelope"
	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/fallback"
	"github.com/ethernity-paper/ethernity/frame"
	"github.com/ethernity-paper/ethernity/qrcap"
	"github.com/ethernity-paper/ethernity/sharding"
	"github.com/ethernity-paper/ethernity/signing"
)

// SigningSeedMode selects where the envelope's signing seed is kept.
type SigningSeedMode string

const (
	// SigningSeedEmbedded stores the seed inside the envelope manifest.
	SigningSeedEmbedded SigningSeedMode = "EMBEDDED"
	// SigningSeedSharded also splits the seed across KEY frames alongside
	// the passphrase shares; an unsealed manifest still embeds the seed.
	SigningSeedSharded SigningSeedMode = "SHARDED"
)

// ShareSet is a (threshold, shares) Shamir configuration.
type ShareSet struct {
	Threshold int
	Shares    int
}

// DocumentPlan is the validated policy governing one Build call: whether
// the envelope is sealed, whether the passphrase and/or signing seed are
// Shamir-split, and at what threshold.
//
// Invariants enforced by NewDocumentPlan (redesigned from the source's
// untyped config dict, per spec §4 REDESIGN FLAGS): if Sealed, the signing
// seed mode must be Embedded and no seed shard is ever created; if the
// signing seed mode is Sharded, passphrase sharding must also be enabled.
type DocumentPlan struct {
	Sealed              bool
	Sharding            *ShareSet
	SigningSeedMode     SigningSeedMode
	SigningSeedSharding *ShareSet
}

// NewDocumentPlan validates and returns a DocumentPlan.
func NewDocumentPlan(sealed bool, sharing *ShareSet, seedMode SigningSeedMode, seedSharing *ShareSet) (DocumentPlan, error) {
	if seedMode != SigningSeedEmbedded && seedMode != SigningSeedSharded {
		return DocumentPlan{}, errtag.New(errtag.InvalidInput, "signing_seed_mode must be EMBEDDED or SHARDED").
			WithField("signing_seed_mode")
	}
	if sealed {
		if seedMode != SigningSeedEmbedded {
			return DocumentPlan{}, errtag.New(errtag.InvalidInput,
				"sealed documents must use EMBEDDED signing_seed_mode").WithField("signing_seed_mode")
		}
		if seedSharing != nil {
			return DocumentPlan{}, errtag.New(errtag.InvalidInput,
				"sealed documents must not shard the signing seed").WithField("signing_seed_sharding")
		}
	}
	if seedMode == SigningSeedSharded {
		if sharing == nil {
			return DocumentPlan{}, errtag.New(errtag.InvalidInput,
				"SHARDED signing_seed_mode requires passphrase sharding to also be enabled").
				WithField("sharding")
		}
		if seedSharing == nil {
			return DocumentPlan{}, errtag.New(errtag.InvalidInput,
				"SHARDED signing_seed_mode requires signing_seed_sharding").WithField("signing_seed_sharding")
		}
	}
	if sharing != nil {
		if err := validateShareSet(*sharing); err != nil {
			return DocumentPlan{}, err
		}
	}
	if seedSharing != nil {
		if err := validateShareSet(*seedSharing); err != nil {
			return DocumentPlan{}, err
		}
	}
	return DocumentPlan{
		Sealed:              sealed,
		Sharding:            sharing,
		SigningSeedMode:     seedMode,
		SigningSeedSharding: seedSharing,
	}, nil
}

func validateShareSet(s ShareSet) error {
	if s.Threshold <= 0 || s.Shares <= 0 {
		return errtag.New(errtag.InvalidInput, "threshold and shares must be positive").WithField("sharding")
	}
	if s.Threshold > s.Shares {
		return errtag.New(errtag.InvalidInput, "threshold cannot exceed shares").WithField("sharding")
	}
	if s.Shares > sharding.MaxShares {
		return errtag.New(errtag.Bounds, "shares exceeds the maximum share count").WithLimit("MaxShares")
	}
	return nil
}

// BuildRequest is the input to Build.
type BuildRequest struct {
	Parts              []envelope.Part
	Plan               DocumentPlan
	Passphrase         string
	MnemonicWords      int
	PreferredChunkSize int
	QRGenerator        qrcap.Generator
	CreatedAt          int64
}

// Artifacts is everything Build hands back to the caller for rendering.
type Artifacts struct {
	DocHash           []byte
	DocID             []byte
	Passphrase        string
	MainFrames        []frame.Frame
	AuthFrame         frame.Frame
	AuthPayload       signing.AuthPayload
	KeyFrames         []frame.Frame
	PassphraseShards  []sharding.ShardPayload
	SigningSeedShards []sharding.ShardPayload
	FallbackText      string
}

// Build runs the full backup pipeline (spec §4.11 Backup, steps 1-9) and
// returns every artifact in the fixed order: envelope, ciphertext, ids,
// frames, auth, shards, fallback.
func Build(req BuildRequest) (Artifacts, error) {
	if req.QRGenerator == nil {
		return Artifacts{}, errtag.New(errtag.InvalidInput, "qr generator must not be nil")
	}
	if req.PreferredChunkSize <= 0 {
		return Artifacts{}, errtag.New(errtag.InvalidInput, "preferred_chunk_size must be positive")
	}

	// Step 1: generate the signing keypair.
	signSeed, signPub, err := signing.Generate()
	if err != nil {
		return Artifacts{}, err
	}

	// Step 2: build the envelope, embedding the seed unless sealed.
	var embeddedSeed []byte
	if !req.Plan.Sealed {
		embeddedSeed = signSeed
	}
	manifest, payload, err := envelope.Build(req.Parts, req.Plan.Sealed, embeddedSeed, req.CreatedAt)
	if err != nil {
		return Artifacts{}, err
	}
	envelopeBytes, err := envelope.Pack(manifest, payload)
	if err != nil {
		return Artifacts{}, err
	}

	// Step 3: encrypt.
	ciphertext, passphrase, err := cryptobind.Encrypt(envelopeBytes, req.Passphrase, req.MnemonicWords)
	if err != nil {
		return Artifacts{}, err
	}

	// Step 4: ids.
	docHash, docID, err := docid.Derive(ciphertext)
	if err != nil {
		return Artifacts{}, err
	}
	var docIDArr [frame.DocIDLen]byte
	copy(docIDArr[:], docID)

	// Step 5: QR capacity probe, then chunk into MAIN frames.
	chunkSize, err := qrcap.ChooseChunkSize(len(ciphertext), req.PreferredChunkSize, docIDArr, frame.MainDocument, req.QRGenerator)
	if err != nil {
		return Artifacts{}, err
	}
	mainFrames, err := chunk.Split(ciphertext, docIDArr, frame.MainDocument, chunkSize)
	if err != nil {
		return Artifacts{}, err
	}

	// Step 6: AUTH frame from a signed AuthPayload.
	authSig, err := signing.SignAuth(docHash, signSeed)
	if err != nil {
		return Artifacts{}, err
	}
	authPayload := signing.AuthPayload{
		Version:   signing.AuthVersion,
		DocHash:   docHash,
		SignPub:   signPub,
		Signature: authSig,
	}
	authBytes, err := signing.EncodeAuthPayload(docHash, signPub, authSig)
	if err != nil {
		return Artifacts{}, err
	}
	authFrame := frame.Frame{
		Version:   frame.Version,
		FrameType: frame.Auth,
		DocID:     docIDArr,
		Index:     0,
		Total:     1,
		Data:      authBytes,
	}
	if _, err := frame.Encode(authFrame); err != nil {
		return Artifacts{}, err
	}

	// Step 7: if sharded, split the passphrase and optionally the signing
	// seed, wrapping each share as a signed KEY frame.
	var keyFrames []frame.Frame
	var passphraseShards []sharding.ShardPayload
	var signingSeedShards []sharding.ShardPayload
	if req.Plan.Sharding != nil {
		passphraseShards, err = sharding.Split(
			[]byte(passphrase), req.Plan.Sharding.Threshold, req.Plan.Sharding.Shares,
			sharding.KeyPassphrase, docHash, signPub, signSeed)
		if err != nil {
			return Artifacts{}, err
		}
		keyFrames, err = appendShardFrames(keyFrames, passphraseShards, docIDArr)
		if err != nil {
			return Artifacts{}, err
		}

		if req.Plan.SigningSeedMode == SigningSeedSharded {
			signingSeedShards, err = sharding.Split(
				signSeed, req.Plan.SigningSeedSharding.Threshold, req.Plan.SigningSeedSharding.Shares,
				sharding.KeySigningSeed, docHash, signPub, signSeed)
			if err != nil {
				return Artifacts{}, err
			}
			keyFrames, err = appendShardFrames(keyFrames, signingSeedShards, docIDArr)
			if err != nil {
				return Artifacts{}, err
			}
		}
	}

	// Step 8: fallback text for AUTH + MAIN.
	sections := make([]fallback.Section, 0, 1+len(mainFrames))
	authLines, err := fallback.FrameToLines(authFrame, fallback.DefaultGroupSize, fallback.DefaultLineLength)
	if err != nil {
		return Artifacts{}, err
	}
	sections = append(sections, fallback.Section{Name: fallback.SectionAuth, Lines: authLines})
	for _, f := range mainFrames {
		lines, err := fallback.FrameToLines(f, fallback.DefaultGroupSize, fallback.DefaultLineLength)
		if err != nil {
			return Artifacts{}, err
		}
		sections = append(sections, fallback.Section{Name: fallback.SectionMain, Lines: lines})
	}
	fallbackText := fallback.RenderText(sections)

	// Step 9: return all artifacts.
	return Artifacts{
		DocHash:           docHash,
		DocID:             docID,
		Passphrase:        passphrase,
		MainFrames:        mainFrames,
		AuthFrame:         authFrame,
		AuthPayload:       authPayload,
		KeyFrames:         keyFrames,
		PassphraseShards:  passphraseShards,
		SigningSeedShards: signingSeedShards,
		FallbackText:      fallbackText,
	}, nil
}

func appendShardFrames(keyFrames []frame.Frame, shards []sharding.ShardPayload, docID [frame.DocIDLen]byte) ([]frame.Frame, error) {
	for _, s := range shards {
		data, err := sharding.Encode(s)
		if err != nil {
			return nil, err
		}
		f := frame.Frame{
			Version:   frame.Version,
			FrameType: frame.KeyDocument,
			DocID:     docID,
			Index:     0,
			Total:     1,
			Data:      data,
		}
		if _, err := frame.Encode(f); err != nil {
			return nil, err
		}
		keyFrames = append(keyFrames, f)
	}
	return keyFrames, nil
}

// RecoverRequest is the input to Recover.
type RecoverRequest struct {
	Frames        []frame.Frame
	Passphrase    string
	AllowUnsigned bool
}

// Recovered is one extracted file.
type Recovered struct {
	Path string
	Data []byte
}

// RecoverResult is everything Recover hands back: the extracted files plus
// whether a downgraded (allow_unsigned) verification occurred.
type RecoverResult struct {
	Files           []Recovered
	DocHash         []byte
	DocID           []byte
	AuthVerified    bool
	PolicyWarning   string
}

// Recover runs the full recovery pipeline (spec §4.11 Recovery, steps 1-6):
// dedupe and partition frames, reassemble MAIN, resolve AUTH, resolve the
// passphrase (directly or via KEY-frame shard combination), decrypt, and
// extract the packed files.
func Recover(req RecoverRequest) (RecoverResult, error) {
	// Step 1: dedupe by (type, index, doc_id), requiring byte-identical
	// repeats.
	deduped, err := dedupeFrames(req.Frames)
	if err != nil {
		return RecoverResult{}, err
	}

	// Step 2: partition into MAIN, AUTH, KEY; MAIN must be non-empty.
	mainFrames, authFrames, keyFrames, err := partitionFrames(deduped)
	if err != nil {
		return RecoverResult{}, err
	}
	if len(mainFrames) == 0 {
		return RecoverResult{}, errtag.New(errtag.InvalidInput, "no MAIN frames provided")
	}
	docIDArr := mainFrames[0].DocID

	// Step 3: reassemble MAIN, derive ids.
	ciphertext, err := chunk.Reassemble(mainFrames, docIDArr, frame.MainDocument)
	if err != nil {
		return RecoverResult{}, err
	}
	docHash, docID, err := docid.Derive(ciphertext)
	if err != nil {
		return RecoverResult{}, err
	}

	// Step 4: resolve AUTH.
	var signPub []byte
	authVerified := false
	policyWarning := ""
	switch {
	case len(authFrames) == 0 && !req.AllowUnsigned && len(keyFrames) == 0:
		return RecoverResult{}, errtag.New(errtag.Crypto, "no AUTH frame and no KEY frames; refusing to recover unsigned")
	case len(authFrames) == 0:
		policyWarning = "no AUTH frame present; proceeding without signature verification"
	default:
		if len(authFrames) != 1 {
			return RecoverResult{}, errtag.New(errtag.Integrity, "exactly one AUTH frame is required").WithField("auth")
		}
		authPayload, err := signing.DecodeAuthPayload(authFrames[0].Data)
		if err != nil {
			if req.AllowUnsigned {
				policyWarning = "AUTH frame failed to decode; proceeding without signature verification"
				break
			}
			return RecoverResult{}, err
		}
		if !bytesEqual(authPayload.DocHash, docHash) {
			return RecoverResult{}, errtag.New(errtag.Integrity, "auth doc_hash does not match the reassembled ciphertext").
				WithField("doc_hash")
		}
		if !signing.VerifyAuth(authPayload.DocHash, authPayload.SignPub, authPayload.Signature) {
			if req.AllowUnsigned {
				policyWarning = "AUTH signature verification failed; proceeding without signature verification"
				break
			}
			return RecoverResult{}, errtag.New(errtag.Crypto, "auth signature verification failed")
		}
		signPub = authPayload.SignPub
		authVerified = true
	}

	// Step 5: resolve the passphrase, either directly or by combining KEY
	// frame shards. Shard-signature failures are always terminal.
	passphrase := req.Passphrase
	if len(keyFrames) > 0 {
		resolved, err := resolvePassphraseFromShards(keyFrames, docHash, signPub)
		if err != nil {
			return RecoverResult{}, err
		}
		passphrase = resolved
	}
	if passphrase == "" {
		return RecoverResult{}, errtag.New(errtag.InvalidInput, "no passphrase available and no KEY frames to recover one")
	}

	// Step 6: decrypt, parse the envelope, extract parts.
	envelopeBytes, err := cryptobind.Decrypt(ciphertext, passphrase)
	if err != nil {
		return RecoverResult{}, err
	}
	manifest, payload, err := envelope.Unpack(envelopeBytes)
	if err != nil {
		return RecoverResult{}, err
	}
	extracted, err := envelope.ExtractParts(manifest, payload)
	if err != nil {
		return RecoverResult{}, err
	}

	files := make([]Recovered, len(extracted))
	for i, e := range extracted {
		files[i] = Recovered{Path: e.File.Path, Data: e.Data}
	}

	return RecoverResult{
		Files:         files,
		DocHash:       docHash,
		DocID:         docID,
		AuthVerified:  authVerified,
		PolicyWarning: policyWarning,
	}, nil
}

type frameKey struct {
	frameType frame.Type
	index     uint64
	docID     [frame.DocIDLen]byte
}

func dedupeFrames(frames []frame.Frame) ([]frame.Frame, error) {
	seen := make(map[frameKey]frame.Frame, len(frames))
	out := make([]frame.Frame, 0, len(frames))
	for _, f := range frames {
		key := frameKey{frameType: f.FrameType, index: f.Index, docID: f.DocID}
		if existing, ok := seen[key]; ok {
			if !framesEqual(existing, f) {
				return nil, errtag.New(errtag.Integrity, "duplicate frame with conflicting data").
					WithField("frame").WithIndex(int(f.Index))
			}
			continue
		}
		seen[key] = f
		out = append(out, f)
	}
	return out, nil
}

func framesEqual(a, b frame.Frame) bool {
	if a.Version != b.Version || a.FrameType != b.FrameType || a.DocID != b.DocID ||
		a.Index != b.Index || a.Total != b.Total {
		return false
	}
	return bytesEqual(a.Data, b.Data)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func partitionFrames(frames []frame.Frame) (main, auth, key []frame.Frame, err error) {
	for _, f := range frames {
		switch f.FrameType {
		case frame.MainDocument:
			main = append(main, f)
		case frame.Auth:
			auth = append(auth, f)
		case frame.KeyDocument:
			key = append(key, f)
		default:
			return nil, nil, nil, errtag.New(errtag.Codec, "unrecognized frame type").WithField("frame_type")
		}
	}
	return main, auth, key, nil
}

// resolvePassphraseFromShards decodes every KEY frame's ShardPayload,
// checks it against the known doc_hash and (if known) sign_pub, verifies
// each shard's signature, and combines the passphrase shares. Shard
// signature failures are always terminal regardless of allow_unsigned.
func resolvePassphraseFromShards(keyFrames []frame.Frame, docHash, signPub []byte) (string, error) {
	var passphraseShards []sharding.ShardPayload
	for _, f := range keyFrames {
		shard, err := sharding.Decode(f.Data)
		if err != nil {
			return "", err
		}
		if shard.Type != sharding.KeyPassphrase {
			continue
		}
		if !bytesEqual(shard.DocHash, docHash) {
			return "", errtag.New(errtag.Sharing, "shard hash does not match the computed doc_hash").WithField("hash")
		}
		if signPub != nil && !bytesEqual(shard.SignPub, signPub) {
			return "", errtag.New(errtag.Sharing, "shard pub does not match the AUTH sign_pub").WithField("pub")
		}
		if !sharding.VerifySignature(shard) {
			return "", errtag.New(errtag.Crypto, "shard signature verification failed")
		}
		passphraseShards = append(passphraseShards, shard)
	}
	if len(passphraseShards) == 0 {
		return "", errtag.New(errtag.Sharing, "no passphrase shards present among KEY frames")
	}
	secret, err := sharding.Combine(passphraseShards, sharding.KeyPassphrase)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
