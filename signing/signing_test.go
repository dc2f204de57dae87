package signing

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocHash() []byte {
	h := make([]byte, DocHashLen)
	for i := range h {
		h[i] = byte(i + 1)
	}
	return h
}

func TestSignVerifyAuthRoundTrip(t *testing.T) {
	seed, pub, err := Generate()
	require.NoError(t, err)

	docHash := sampleDocHash()
	sig, err := SignAuth(docHash, seed)
	require.NoError(t, err)
	assert.True(t, VerifyAuth(docHash, pub, sig))
}

func TestVerifyAuthRejectsTamperedHash(t *testing.T) {
	seed, pub, err := Generate()
	require.NoError(t, err)

	docHash := sampleDocHash()
	sig, err := SignAuth(docHash, seed)
	require.NoError(t, err)

	tampered := append([]byte(nil), docHash...)
	tampered[0] ^= 0xff
	assert.False(t, VerifyAuth(tampered, pub, sig))
}

func TestVerifyAuthRejectsWrongKey(t *testing.T) {
	seed, _, err := Generate()
	require.NoError(t, err)
	_, otherPub, err := Generate()
	require.NoError(t, err)

	docHash := sampleDocHash()
	sig, err := SignAuth(docHash, seed)
	require.NoError(t, err)
	assert.False(t, VerifyAuth(docHash, otherPub, sig))
}

func TestSignVerifyShardRoundTrip(t *testing.T) {
	seed, pub, err := Generate()
	require.NoError(t, err)

	docHash := sampleDocHash()
	share := []byte("0123456789abcdef")
	sig, err := SignShard(docHash, 3, share, seed)
	require.NoError(t, err)
	assert.True(t, VerifyShard(docHash, 3, share, pub, sig))
	assert.False(t, VerifyShard(docHash, 4, share, pub, sig))
}

func TestSignShardRejectsInvalidArgs(t *testing.T) {
	seed, _, err := Generate()
	require.NoError(t, err)
	docHash := sampleDocHash()

	_, err = SignShard(docHash, 0, []byte("x"), seed)
	require.Error(t, err)

	_, err = SignShard(docHash, 1, nil, seed)
	require.Error(t, err)
}

func TestAuthPayloadEncodeDecodeRoundTrip(t *testing.T) {
	seed, pub, err := Generate()
	require.NoError(t, err)
	docHash := sampleDocHash()
	sig, err := SignAuth(docHash, seed)
	require.NoError(t, err)

	encoded, err := EncodeAuthPayload(docHash, pub, sig)
	require.NoError(t, err)

	decoded, err := DecodeAuthPayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, AuthVersion, decoded.Version)
	assert.Equal(t, docHash, decoded.DocHash)
	assert.Equal(t, pub, decoded.SignPub)
	assert.Equal(t, sig, decoded.Signature)
	assert.True(t, VerifyAuth(decoded.DocHash, decoded.SignPub, decoded.Signature))
}

func TestDecodeAuthPayloadRejectsWrongLength(t *testing.T) {
	encoded, err := cbor.Marshal([]interface{}{1, 2, 3})
	require.NoError(t, err)
	_, err = DecodeAuthPayload(encoded)
	require.Error(t, err)
}
