package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a control-plane error for callers and for the boundary
// status mapping. Every error surfaced by a component carries exactly one Kind.
type Kind int

const (
	KindInvalidArgument Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindConflict
	KindTimeout
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the typed error carried between components. Callers inspect the
// Kind; the wrapped cause stays available for logs via errors.Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func InvalidArgument(msg string) error {
	return New(KindInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(KindNotFound, msg)
}

// Unauthorized is deliberately detail-free so the caller cannot distinguish
// a malformed credential from an unknown one.
func Unauthorized() error {
	return New(KindUnauthorized, "unauthorized")
}

func Conflict(msg string) error {
	return New(KindConflict, msg)
}

func Timeout(msg string) error {
	return New(KindTimeout, msg)
}

func Internal(msg string, err error) error {
	return Wrap(KindInternal, msg, err)
}

// KindOf extracts the Kind from err, walking the wrap chain. Errors without
// a Kind are treated as internal.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
