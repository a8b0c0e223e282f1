// Package apperr holds the user-facing failure taxonomy of guarded operations.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindUnauthorized
	KindMalformedInput
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	case KindMalformedInput:
		return "malformed_input"
	}
	return "internal"
}

// Error is a failure the end user can act on. Extra travels to the response envelope.
type Error struct {
	Kind    Kind
	Message string
	Extra   map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) With(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = map[string]any{}
	}
	e.Extra[key] = value
	return e
}

func newError(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Malformed(format string, args ...any) *Error {
	return newError(KindMalformedInput, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err to *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
