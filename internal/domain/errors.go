package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes a failure so callers can decide how to surface it.
type ErrorKind string

const (
	// KindValidation indicates malformed or oversized user input. It is
	// surfaced inline at the point of capture and never moves the session
	// into a failed state.
	KindValidation ErrorKind = "validation"

	// KindConfiguration indicates a missing required credential. Surfaced
	// as a generic "service unavailable" failure, no retry.
	KindConfiguration ErrorKind = "configuration"

	// KindService indicates a network failure, a non-success response or
	// a schema-validation failure of the external response.
	KindService ErrorKind = "service"
)

// Error is the canonical error returned across package boundaries.
type Error struct {
	// Kind is the failure category.
	Kind ErrorKind

	// Op names the operation that failed (e.g. "gemini.detect").
	Op string

	// Message is the human-readable description shown to the user.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by kind so callers can use errors.Is with sentinel
// kind carriers.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// HTTPStatusCode maps the error kind to an HTTP status for the API layer.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrValidation creates a validation error.
func ErrValidation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// ErrConfiguration creates a configuration error.
func ErrConfiguration(op, message string) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: message}
}

// ErrService creates a service error wrapping its cause.
func ErrService(op, message string, err error) *Error {
	return &Error{Kind: KindService, Op: op, Message: message, Err: err}
}

// KindOf extracts the kind of err, or "" when err is not a domain error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
