// Package signing is the Ed25519 signing authority: key generation plus
// domain-separated signatures over a document hash (AUTH) and over a
// document hash, shard index, and share bytes (KEY/shard).
package signing

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/fxamacker/cbor/v2"

	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/internal/varint"
)

// AuthDomain and ShardDomain prefix the message before signing, so an AUTH
// signature can never be replayed as a shard signature or vice versa.
var (
	AuthDomain  = []byte("ETHERNITY-AUTH-V1")
	ShardDomain = []byte("ETHERNITY-SHARD-V1")
)

const (
	// AuthVersion is the only AuthPayload format version understood today.
	AuthVersion = 1
	// PubLen is the width of a raw Ed25519 public key.
	PubLen = ed25519.PublicKeySize
	// SeedLen is the width of a raw Ed25519 seed.
	SeedLen = ed25519.SeedSize
	// SigLen is the width of a raw Ed25519 signature.
	SigLen = ed25519.SignatureSize
	// DocHashLen is the width of the document hash these signatures cover.
	DocHashLen = 32
)

// AuthPayload is the CBOR array [version, doc_hash, sign_pub, signature].
type AuthPayload struct {
	Version   int
	DocHash   []byte
	SignPub   []byte
	Signature []byte
}

// Generate produces a fresh Ed25519 seed and its corresponding raw public
// key.
func Generate() (seed []byte, pub []byte, err error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errtag.Wrap(errtag.Crypto, err, "generating ed25519 keypair")
	}
	return append([]byte(nil), privKey.Seed()...), append([]byte(nil), pubKey...), nil
}

func keyFromSeed(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != SeedLen {
		return nil, errtag.New(errtag.InvalidInput, "sign_priv must be 32 bytes").WithField("sign_priv")
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// SignAuth signs AuthDomain||docHash with the private key derived from seed.
func SignAuth(docHash []byte, seed []byte) ([]byte, error) {
	if len(docHash) != DocHashLen {
		return nil, errtag.New(errtag.InvalidInput, "doc_hash must be 32 bytes").WithField("doc_hash")
	}
	priv, err := keyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, append(append([]byte(nil), AuthDomain...), docHash...)), nil
}

// VerifyAuth reports whether signature authenticates AuthDomain||docHash
// under pub. It never returns an error; any malformed input is simply
// treated as a failed verification.
func VerifyAuth(docHash []byte, pub []byte, signature []byte) bool {
	if len(docHash) != DocHashLen || len(pub) != PubLen || len(signature) != SigLen {
		return false
	}
	msg := append(append([]byte(nil), AuthDomain...), docHash...)
	return ed25519.Verify(pub, msg, signature)
}

// SignShard signs ShardDomain||docHash||uvarint(shardIndex)||share.
func SignShard(docHash []byte, shardIndex int, share []byte, seed []byte) ([]byte, error) {
	if len(docHash) != DocHashLen {
		return nil, errtag.New(errtag.InvalidInput, "doc_hash must be 32 bytes").WithField("doc_hash")
	}
	if shardIndex <= 0 {
		return nil, errtag.New(errtag.InvalidInput, "shard_index must be positive").WithField("shard_index")
	}
	if len(share) == 0 {
		return nil, errtag.New(errtag.InvalidInput, "share must not be empty").WithField("share")
	}
	priv, err := keyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	msg := shardMessage(docHash, shardIndex, share)
	return ed25519.Sign(priv, msg), nil
}

// VerifyShard reports whether signature authenticates
// ShardDomain||docHash||uvarint(shardIndex)||share under pub. It never
// returns an error; any malformed input is treated as a failed
// verification.
func VerifyShard(docHash []byte, shardIndex int, share []byte, pub []byte, signature []byte) bool {
	if len(docHash) != DocHashLen || shardIndex <= 0 || len(share) == 0 {
		return false
	}
	if len(pub) != PubLen || len(signature) != SigLen {
		return false
	}
	msg := shardMessage(docHash, shardIndex, share)
	return ed25519.Verify(pub, msg, signature)
}

func shardMessage(docHash []byte, shardIndex int, share []byte) []byte {
	msg := append([]byte(nil), ShardDomain...)
	msg = append(msg, docHash...)
	msg = varint.EncodeUint(msg, uint64(shardIndex))
	msg = append(msg, share...)
	return msg
}

// EncodeAuthPayload serializes (docHash, signPub, signature) as the CBOR
// array [version, doc_hash, sign_pub, signature].
func EncodeAuthPayload(docHash, signPub, signature []byte) ([]byte, error) {
	if len(docHash) != DocHashLen {
		return nil, errtag.New(errtag.InvalidInput, "doc_hash must be 32 bytes").WithField("doc_hash")
	}
	if len(signPub) != PubLen {
		return nil, errtag.New(errtag.InvalidInput, "sign_pub must be 32 bytes").WithField("sign_pub")
	}
	if len(signature) != SigLen {
		return nil, errtag.New(errtag.InvalidInput, "signature must be 64 bytes").WithField("signature")
	}
	array := []interface{}{AuthVersion, docHash, signPub, signature}
	encoded, err := cbor.Marshal(array)
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "encoding auth payload")
	}
	return encoded, nil
}

// DecodeAuthPayload parses and fully validates an encoded AuthPayload. It
// does not verify the signature; call VerifyAuth separately.
func DecodeAuthPayload(data []byte) (AuthPayload, error) {
	var raw []cbor.RawMessage
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return AuthPayload{}, errtag.Wrap(errtag.Codec, err, "decoding auth payload")
	}
	if len(raw) != 4 {
		return AuthPayload{}, errtag.New(errtag.Codec, "auth payload must have 4 elements").WithField("auth_payload")
	}

	var version int
	if err := cbor.Unmarshal(raw[0], &version); err != nil {
		return AuthPayload{}, errtag.Wrap(errtag.Codec, err, "decoding auth payload version")
	}
	if version != AuthVersion {
		return AuthPayload{}, errtag.New(errtag.Codec, "unsupported auth payload version").WithField("version")
	}

	docHash, err := decodeFixedBytes(raw[1], DocHashLen, "doc_hash")
	if err != nil {
		return AuthPayload{}, err
	}
	signPub, err := decodeFixedBytes(raw[2], PubLen, "sign_pub")
	if err != nil {
		return AuthPayload{}, err
	}
	signature, err := decodeFixedBytes(raw[3], SigLen, "signature")
	if err != nil {
		return AuthPayload{}, err
	}

	return AuthPayload{
		Version:   version,
		DocHash:   docHash,
		SignPub:   signPub,
		Signature: signature,
	}, nil
}

func decodeFixedBytes(raw cbor.RawMessage, length int, field string) ([]byte, error) {
	var b []byte
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "decoding "+field).WithField(field)
	}
	if len(b) != length {
		return nil, errtag.New(errtag.Codec, field+" has the wrong length").WithField(field)
	}
	return b, nil
}
