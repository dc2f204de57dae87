package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeed() []byte {
	seed := make([]byte, SigningSeedLen)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestBuildPackUnpackRoundTrip(t *testing.T) {
	parts := []Part{
		{Path: "b.txt", Data: []byte("second file")},
		{Path: "a.txt", Data: []byte("first file")},
	}
	manifest, payload, err := Build(parts, false, sampleSeed(), 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", manifest.Files[0].Path)
	assert.Equal(t, "b.txt", manifest.Files[1].Path)

	encoded, err := Pack(manifest, payload)
	require.NoError(t, err)

	decodedManifest, decodedPayload, err := Unpack(encoded)
	require.NoError(t, err)
	assert.Equal(t, manifest.Files, decodedManifest.Files)
	assert.Equal(t, payload, decodedPayload)

	extracted, err := ExtractParts(decodedManifest, decodedPayload)
	require.NoError(t, err)
	require.Len(t, extracted, 2)
	assert.Equal(t, []byte("first file"), extracted[0].Data)
	assert.Equal(t, []byte("second file"), extracted[1].Data)
}

func TestBuildSealedRejectsSeed(t *testing.T) {
	_, _, err := Build([]Part{{Path: "a.txt", Data: []byte("x")}}, true, sampleSeed(), 0)
	require.Error(t, err)
}

func TestBuildUnsealedRequiresSeed(t *testing.T) {
	_, _, err := Build([]Part{{Path: "a.txt", Data: []byte("x")}}, false, nil, 0)
	require.Error(t, err)
}

func TestBuildRejectsDuplicatePaths(t *testing.T) {
	parts := []Part{
		{Path: "a.txt", Data: []byte("x")},
		{Path: "a.txt", Data: []byte("y")},
	}
	_, _, err := Build(parts, true, nil, 0)
	require.Error(t, err)
}

func TestBuildRejectsBadPaths(t *testing.T) {
	for _, bad := range []string{"", "/abs", "a/../b", "a/./b", "a//b"} {
		_, _, err := Build([]Part{{Path: bad, Data: []byte("x")}}, true, nil, 0)
		require.Error(t, err, "path %q should be rejected", bad)
	}
}

func TestUnpackRejectsBadMagic(t *testing.T) {
	manifest, payload, err := Build([]Part{{Path: "a.txt", Data: []byte("x")}}, true, nil, 0)
	require.NoError(t, err)
	encoded, err := Pack(manifest, payload)
	require.NoError(t, err)
	encoded[0] = 'Z'
	_, _, err = Unpack(encoded)
	require.Error(t, err)
}

func TestExtractPartsRejectsTamperedPayload(t *testing.T) {
	manifest, payload, err := Build([]Part{{Path: "a.txt", Data: []byte("original")}}, true, nil, 0)
	require.NoError(t, err)
	tampered := append([]byte(nil), payload...)
	tampered[0] ^= 0xff
	_, err = ExtractParts(manifest, tampered)
	require.Error(t, err)
}

func TestExtractPartsRejectsLeftoverSuffix(t *testing.T) {
	manifest, payload, err := Build([]Part{{Path: "a.txt", Data: []byte("original")}}, true, nil, 0)
	require.NoError(t, err)
	withExtra := append(append([]byte(nil), payload...), 'X')
	_, err = ExtractParts(manifest, withExtra)
	require.Error(t, err)
}
