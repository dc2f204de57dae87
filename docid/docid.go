// Package docid derives the document hash and document id that identify a
// backup across all of its paper artifacts. Both are derived exclusively
// from the ciphertext, so they are safe to display in cleartext.
package docid

import (
	"golang.org/x/crypto/blake2b"

	"github.com/ethernity-paper/ethernity/errtag"
)

// HashLen is the width of a document hash.
const HashLen = 32

// IDLen is the width of a document id: the leading bytes of its hash.
const IDLen = 8

// Hash returns BLAKE2b-256(ciphertext).
func Hash(ciphertext []byte) ([]byte, error) {
	sum := blake2b.Sum256(ciphertext)
	return sum[:], nil
}

// ID returns the first IDLen bytes of docHash.
func ID(docHash []byte) ([]byte, error) {
	if len(docHash) < IDLen {
		return nil, errtag.New(errtag.InvalidInput, "doc_hash shorter than doc_id length").WithField("doc_hash")
	}
	return append([]byte(nil), docHash[:IDLen]...), nil
}

// Derive computes both the document hash and document id from ciphertext in
// one call.
func Derive(ciphertext []byte) (docHash []byte, docID []byte, err error) {
	docHash, err = Hash(ciphertext)
	if err != nil {
		return nil, nil, err
	}
	docID, err = ID(docHash)
	if err != nil {
		return nil, nil, err
	}
	return docHash, docID, nil
}
