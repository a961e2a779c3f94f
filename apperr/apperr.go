// Package apperr defines the error taxonomy surfaced at the wire boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the distinct error categories visible to clients.
type Kind string

const (
	NotFound          Kind = "not_found"
	BadRequest        Kind = "bad_request"
	Unauthorized      Kind = "unauthorized"
	NotAcceptingWork  Kind = "not_accepting_work"
	Upstream          Kind = "upstream"
	Database          Kind = "database"
	Internal          Kind = "internal"
)

// Error wraps a message with its Kind so dispatch-layer code can map it to
// a wire error frame via errors.As without string matching.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func Unauthorizedf(format string, args ...any) *Error {
	return New(Unauthorized, fmt.Sprintf(format, args...))
}

func NotAcceptingWorkf(format string, args ...any) *Error {
	return New(NotAcceptingWork, fmt.Sprintf(format, args...))
}

func Upstreamf(cause error, format string, args ...any) *Error {
	return Wrap(Upstream, fmt.Sprintf(format, args...), cause)
}

func Databasef(cause error, format string, args ...any) *Error {
	return Wrap(Database, fmt.Sprintf(format, args...), cause)
}

func Internalf(format string, args ...any) *Error {
	return New(Internal, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that
// never went through this package (e.g. a bare driver error that escaped).
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// ErrNotFound is the sentinel compared against with errors.Is by lower
// layers (store, crdtdoc) that do not need a formatted message.
var ErrNotFound = New(NotFound, "not found")

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
