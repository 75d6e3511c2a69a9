// Package memexerr defines the closed set of error kinds the core
// distinguishes on (record store, vector index, capture pipeline, tool
// service). Callers branch on kind with errors.As, not string matching.
package memexerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds the system propagates as distinguished
// values rather than ad-hoc error strings.
type Kind int

const (
	// KindNotFound: an id was absent from the record store or the vector index.
	KindNotFound Kind = iota
	// KindDuplicateID: put() into the record store collided with an existing id.
	KindDuplicateID
	// KindIoFailure: a record-store read/write failed.
	KindIoFailure
	// KindUnavailable: the vector index could not be reached.
	KindUnavailable
	// KindTimeout: an external call exceeded its deadline.
	KindTimeout
	// KindMalformedRecord: a record on disk failed to parse.
	KindMalformedRecord
	// KindInvalidArgument: a caller-supplied value violated the tool's contract.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindDuplicateID:
		return "DuplicateId"
	case KindIoFailure:
		return "IoFailure"
	case KindUnavailable:
		return "Unavailable"
	case KindTimeout:
		return "Timeout"
	case KindMalformedRecord:
		return "MalformedRecord"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind, a message, an
// optional field name (for InvalidArgument), and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Field string
	Cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Msg, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers
// can write errors.Is(err, memexerr.New(memexerr.KindNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func Invalid(field, msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Msg: msg, Field: field}
}

// Of reports the Kind of err if it (or something it wraps) is a *Error,
// and ok=false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
