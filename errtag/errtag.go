// Package errtag implements the core error taxonomy: every failure surfaced
// by ethernity's backup/recovery pipeline is tagged with a Kind so callers
// can branch on failure category without matching error strings.
package errtag

import (
	"errors"
	"fmt"
)

// Kind classifies a core error. The set is fixed and matches the sum type
// described for the backup/recovery core: every terminal failure belongs to
// exactly one of these.
type Kind int

const (
	// InvalidInput marks malformed caller arguments: empty payloads, too
	// many files, illegal paths, plan invariant violations.
	InvalidInput Kind = iota + 1
	// Bounds marks a size cap exceeded (ciphertext, manifest, frame, QR
	// payload, fallback text).
	Bounds
	// Codec marks a wire-format failure: bad magic, unsupported version,
	// bad varint, CRC mismatch, length mismatch, invalid z-base-32/base64,
	// invalid CBOR, missing required map key.
	Codec
	// Crypto marks a signature or authenticated-decryption failure, or
	// malformed key material.
	Crypto
	// Sharing marks a Shamir share-set inconsistency: insufficient shares,
	// mismatched threshold/share_count, duplicate conflicting indices, bad
	// share length.
	Sharing
	// Integrity marks a cross-check failure between independently derived
	// values: reassembled frame conflicts, manifest hash mismatch,
	// doc_hash mismatch.
	Integrity
	// Policy marks a downgraded verification the caller explicitly opted
	// into (allow_unsigned); surfaced as a warning rather than a failure.
	Policy
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case Bounds:
		return "Bounds"
	case Codec:
		return "Codec"
	case Crypto:
		return "Crypto"
	case Sharing:
		return "Sharing"
	case Integrity:
		return "Integrity"
	case Policy:
		return "Policy"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by core packages. It carries
// enough context (Field, Limit, Index) to let a caller fix the input
// without the message needing to embed secret material.
type Error struct {
	Kind  Kind
	Msg   string
	Field string
	Limit string
	Index int
	// HasIndex distinguishes "index 0 is meaningful" from "no index set".
	HasIndex bool
	Cause    error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Field != "" {
		s += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Limit != "" {
		s += fmt.Sprintf(" (limit=%s)", e.Limit)
	}
	if e.HasIndex {
		s += fmt.Sprintf(" (index=%d)", e.Index)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errtag.Kind) style matching work via a sentinel
// wrapper; see KindOf for the common case of inspecting the Kind directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an Error of the given kind with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// WithField returns a copy of e with Field set, for chaining off New/Wrap.
func (e *Error) WithField(field string) *Error {
	c := *e
	c.Field = field
	return &c
}

// WithLimit returns a copy of e with Limit set.
func (e *Error) WithLimit(limit string) *Error {
	c := *e
	c.Limit = limit
	return &c
}

// WithIndex returns a copy of e with Index set.
func (e *Error) WithIndex(index int) *Error {
	c := *e
	c.Index = index
	c.HasIndex = true
	return &c
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
