package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestDeriveMatchesBlake2b(t *testing.T) {
	ciphertext := []byte("some ciphertext bytes")
	docHash, docID, err := Derive(ciphertext)
	require.NoError(t, err)

	expected := blake2b.Sum256(ciphertext)
	assert.Equal(t, expected[:], docHash)
	assert.Equal(t, expected[:IDLen], docID)
	assert.Len(t, docHash, HashLen)
	assert.Len(t, docID, IDLen)
}

func TestDeriveIsDeterministic(t *testing.T) {
	ciphertext := []byte("repeatable input")
	hash1, id1, err := Derive(ciphertext)
	require.NoError(t, err)
	hash2, id2, err := Derive(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, id1, id2)
}

func TestDeriveDiffersOnDifferentInput(t *testing.T) {
	hash1, _, err := Derive([]byte("input one"))
	require.NoError(t, err)
	hash2, _, err := Derive([]byte("input two"))
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2)
}
