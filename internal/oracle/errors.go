package oracle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies oracle failures for retry policy.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindTransport     ErrorKind = "transport"
	KindEmpty         ErrorKind = "empty_response"
)

// Error is the typed failure returned by every Client implementation.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oracle %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("oracle %s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as an oracle error of the given kind.
func NewError(kind ErrorKind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// IsOracleError reports whether err is (or wraps) an oracle error.
func IsOracleError(err error) bool {
	var oe *Error
	return errors.As(err, &oe)
}

// KindOf returns the kind of an oracle error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}
