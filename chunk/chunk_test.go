package chunk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-paper/ethernity/frame"
)

func docID() [frame.DocIDLen]byte {
	var id [frame.DocIDLen]byte
	for i := range id {
		id[i] = byte(0xa0 + i)
	}
	return id
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times over")
	for _, chunkSize := range []int{1, 3, 7, 16, 1000} {
		frames, err := Split(payload, docID(), frame.MainDocument, chunkSize)
		require.NoError(t, err)
		got, err := Reassemble(frames, docID(), frame.MainDocument)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestReassembleOrderIndependent(t *testing.T) {
	payload := []byte("order should not matter for reassembly")
	frames, err := Split(payload, docID(), frame.MainDocument, 6)
	require.NoError(t, err)

	shuffled := append([]frame.Frame(nil), frames...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	got, err := Reassemble(shuffled, docID(), frame.MainDocument)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReassembleToleratesIdenticalDuplicates(t *testing.T) {
	payload := []byte("duplicate tolerant reassembly")
	frames, err := Split(payload, docID(), frame.MainDocument, 5)
	require.NoError(t, err)
	withDup := append(append([]frame.Frame(nil), frames...), frames[0])

	got, err := Reassemble(withDup, docID(), frame.MainDocument)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReassembleRejectsConflictingDuplicate(t *testing.T) {
	payload := []byte("conflicting duplicate should fail")
	frames, err := Split(payload, docID(), frame.MainDocument, 5)
	require.NoError(t, err)
	conflicting := frames[0]
	conflicting.Data = append(append([]byte(nil), conflicting.Data...), 'X')
	withConflict := append(append([]frame.Frame(nil), frames...), conflicting)

	_, err = Reassemble(withConflict, docID(), frame.MainDocument)
	require.Error(t, err)
}

func TestReassembleRejectsMissingIndex(t *testing.T) {
	payload := []byte("missing index should fail to reassemble")
	frames, err := Split(payload, docID(), frame.MainDocument, 5)
	require.NoError(t, err)
	missing := frames[1:]

	_, err = Reassemble(missing, docID(), frame.MainDocument)
	require.Error(t, err)
}

func TestSplitRejectsEmptyPayload(t *testing.T) {
	_, err := Split(nil, docID(), frame.MainDocument, 10)
	require.Error(t, err)
}
