package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can render an actionable message.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindStateConflict      Kind = "state_conflict"
	KindUploadFailure      Kind = "upload_failure"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindMigrationConflict  Kind = "migration_conflict"
)

// Error is a typed failure carrying its Kind and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinels by identity and otherwise by Kind and Message, so a
// wrapped copy of a sentinel still satisfies errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an existing error.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Backend wraps a collaborator failure. Errors that already carry a Kind
// pass through untouched.
func Backend(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(err, KindBackendUnavailable, message)
}

// KindOf reports the Kind of err, defaulting to backend_unavailable for
// untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackendUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "service temporarily unavailable"
}

// HTTPStatus maps a kind to the status code used by the HTTP transport.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindStateConflict, KindMigrationConflict:
		return http.StatusConflict
	case KindUploadFailure:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
