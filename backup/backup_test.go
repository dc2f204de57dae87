package backup

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-paper/ethernity/envelope"
	"github.com/ethernity-paper/ethernity/frame"
	"github.com/ethernity-paper/ethernity/qrcap"
	"github.com/ethernity-paper/ethernity/sharding"
)

func sampleParts() []envelope.Part {
	return []envelope.Part{
		{Path: "notes.txt", Data: []byte("some private notes")},
		{Path: "keys/wallet.json", Data: []byte(`{"seed":"not a real seed"}`)},
	}
}

func unshardedPlan(t *testing.T, sealed bool) DocumentPlan {
	t.Helper()
	plan, err := NewDocumentPlan(sealed, nil, SigningSeedEmbedded, nil)
	require.NoError(t, err)
	return plan
}

func allFrames(a Artifacts) []frame.Frame {
	frames := append([]frame.Frame{}, a.MainFrames...)
	frames = append(frames, a.AuthFrame)
	frames = append(frames, a.KeyFrames...)
	return frames
}

func sortedPaths(files []Recovered) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

func TestBuildRecoverRoundTripUnsealedUnsharded(t *testing.T) {
	req := BuildRequest{
		Parts:              sampleParts(),
		Plan:               unshardedPlan(t, false),
		Passphrase:         "a strong test passphrase",
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000000,
	}
	artifacts, err := Build(req)
	require.NoError(t, err)
	assert.Len(t, artifacts.DocHash, 32)
	assert.Len(t, artifacts.DocID, 8)
	assert.NotEmpty(t, artifacts.MainFrames)
	assert.Empty(t, artifacts.KeyFrames)
	assert.NotEmpty(t, artifacts.FallbackText)

	result, err := Recover(RecoverRequest{
		Frames:     allFrames(artifacts),
		Passphrase: "a strong test passphrase",
	})
	require.NoError(t, err)
	assert.True(t, result.AuthVerified)
	assert.Empty(t, result.PolicyWarning)
	assert.Equal(t, artifacts.DocHash, result.DocHash)
	assert.Equal(t, []string{"keys/wallet.json", "notes.txt"}, sortedPaths(result.Files))

	want := []Recovered{
		{Path: "keys/wallet.json", Data: []byte(`{"seed":"not a real seed"}`)},
		{Path: "notes.txt", Data: []byte("some private notes")},
	}
	got := append([]Recovered{}, result.Files...)
	sort.Slice(got, func(i, j int) bool { return got[i].Path < got[j].Path })
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recovered files mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRecoverRoundTripSealed(t *testing.T) {
	req := BuildRequest{
		Parts:              sampleParts(),
		Plan:               unshardedPlan(t, true),
		Passphrase:         "sealed document passphrase",
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000001,
	}
	artifacts, err := Build(req)
	require.NoError(t, err)

	result, err := Recover(RecoverRequest{
		Frames:     allFrames(artifacts),
		Passphrase: "sealed document passphrase",
	})
	require.NoError(t, err)
	assert.True(t, result.AuthVerified)
	assert.Len(t, result.Files, 2)
}

func TestBuildRecoverRoundTripShardedPassphrase(t *testing.T) {
	plan, err := NewDocumentPlan(false, &ShareSet{Threshold: 3, Shares: 5}, SigningSeedEmbedded, nil)
	require.NoError(t, err)

	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               plan,
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000002,
	})
	require.NoError(t, err)
	require.Len(t, artifacts.KeyFrames, 5)
	require.NotEmpty(t, artifacts.Passphrase)

	frames := append([]frame.Frame{}, artifacts.MainFrames...)
	frames = append(frames, artifacts.AuthFrame)
	// Use only 3 of 5 KEY frames: enough to recombine the threshold.
	frames = append(frames, artifacts.KeyFrames[0], artifacts.KeyFrames[2], artifacts.KeyFrames[4])

	result, err := Recover(RecoverRequest{Frames: frames})
	require.NoError(t, err)
	assert.True(t, result.AuthVerified)
	assert.Len(t, result.Files, 2)
}

func TestBuildRecoverRoundTripShardedSigningSeed(t *testing.T) {
	plan, err := NewDocumentPlan(false,
		&ShareSet{Threshold: 2, Shares: 3},
		SigningSeedSharded,
		&ShareSet{Threshold: 2, Shares: 3})
	require.NoError(t, err)

	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               plan,
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000003,
	})
	require.NoError(t, err)
	require.Len(t, artifacts.PassphraseShards, 3)
	require.Len(t, artifacts.SigningSeedShards, 3)
	require.Len(t, artifacts.KeyFrames, 6)

	frames := append([]frame.Frame{}, artifacts.MainFrames...)
	frames = append(frames, artifacts.AuthFrame)
	for _, f := range artifacts.KeyFrames {
		frames = append(frames, f)
	}

	result, err := Recover(RecoverRequest{Frames: frames})
	require.NoError(t, err)
	assert.True(t, result.AuthVerified)
	assert.Len(t, result.Files, 2)
}

func TestRecoverFailsWithoutAuthOrKeyUnlessAllowUnsigned(t *testing.T) {
	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               unshardedPlan(t, false),
		Passphrase:         "another passphrase",
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000004,
	})
	require.NoError(t, err)

	_, err = Recover(RecoverRequest{
		Frames:     artifacts.MainFrames,
		Passphrase: "another passphrase",
	})
	require.Error(t, err)

	result, err := Recover(RecoverRequest{
		Frames:        artifacts.MainFrames,
		Passphrase:    "another passphrase",
		AllowUnsigned: true,
	})
	require.NoError(t, err)
	assert.False(t, result.AuthVerified)
	assert.NotEmpty(t, result.PolicyWarning)
	assert.Len(t, result.Files, 2)
}

func TestRecoverDowngradesTamperedAuthWithAllowUnsigned(t *testing.T) {
	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               unshardedPlan(t, false),
		Passphrase:         "tamper test passphrase",
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000005,
	})
	require.NoError(t, err)

	tampered := artifacts.AuthFrame
	badData := append([]byte(nil), tampered.Data...)
	badData[len(badData)-1] ^= 0xFF
	tampered.Data = badData

	frames := append([]frame.Frame{}, artifacts.MainFrames...)
	frames = append(frames, tampered)

	result, err := Recover(RecoverRequest{
		Frames:        frames,
		Passphrase:    "tamper test passphrase",
		AllowUnsigned: true,
	})
	require.NoError(t, err)
	assert.False(t, result.AuthVerified)
	assert.NotEmpty(t, result.PolicyWarning)
}

func TestRecoverRejectsBadShardSignatureEvenWithAllowUnsigned(t *testing.T) {
	plan, err := NewDocumentPlan(false, &ShareSet{Threshold: 2, Shares: 3}, SigningSeedEmbedded, nil)
	require.NoError(t, err)

	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               plan,
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000006,
	})
	require.NoError(t, err)
	require.Len(t, artifacts.KeyFrames, 3)

	shard, err := sharding.Decode(artifacts.KeyFrames[0].Data)
	require.NoError(t, err)
	shard.Signature[0] ^= 0xFF
	tamperedData, err := sharding.Encode(shard)
	require.NoError(t, err)

	tamperedFrame := artifacts.KeyFrames[0]
	tamperedFrame.Data = tamperedData

	frames := append([]frame.Frame{}, artifacts.MainFrames...)
	frames = append(frames, artifacts.AuthFrame, tamperedFrame, artifacts.KeyFrames[1])

	_, err = Recover(RecoverRequest{
		Frames:        frames,
		AllowUnsigned: true,
	})
	require.Error(t, err, "shard signature failures must remain terminal even under allow_unsigned")
}

func TestNewDocumentPlanRejectsInvalidInvariants(t *testing.T) {
	_, err := NewDocumentPlan(true, nil, SigningSeedSharded, nil)
	require.Error(t, err, "sealed documents must not use SHARDED signing_seed_mode")

	_, err = NewDocumentPlan(false, nil, SigningSeedSharded, &ShareSet{Threshold: 2, Shares: 3})
	require.Error(t, err, "SHARDED signing seed mode requires passphrase sharding")

	_, err = NewDocumentPlan(false, &ShareSet{Threshold: 3, Shares: 2}, SigningSeedEmbedded, nil)
	require.Error(t, err, "threshold cannot exceed shares")
}

func TestRecoverRejectsDuplicateConflictingFrames(t *testing.T) {
	artifacts, err := Build(BuildRequest{
		Parts:              sampleParts(),
		Plan:               unshardedPlan(t, false),
		Passphrase:         "duplicate frame test",
		PreferredChunkSize: 64,
		QRGenerator:        qrcap.FakeGenerator{MaxChars: 2000},
		CreatedAt:          1700000007,
	})
	require.NoError(t, err)

	conflicting := artifacts.MainFrames[0]
	conflicting.Data = append([]byte(nil), conflicting.Data...)
	conflicting.Data[0] ^= 0xFF

	frames := append([]frame.Frame{}, artifacts.MainFrames...)
	frames = append(frames, artifacts.AuthFrame, conflicting)

	_, err = Recover(RecoverRequest{Frames: frames, Passphrase: "duplicate frame test"})
	require.Error(t, err)
}
