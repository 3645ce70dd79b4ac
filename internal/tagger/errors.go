package tagger

import (
	"errors"
	"fmt"
)

// ErrorKind classifies tagging failures. All kinds are retryable from
// the controller's point of view; the kind is recorded as feedback so a
// retry prompt can name what went wrong.
type ErrorKind string

const (
	KindMalformed         ErrorKind = "malformed"
	KindScriptViolation   ErrorKind = "script_violation"
	KindRoundTripMismatch ErrorKind = "round_trip_mismatch"
)

// Error is a tagging validation failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tagging %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a tagging error of the given kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of a tagging error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
