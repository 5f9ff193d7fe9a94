// Package apperr provides the error taxonomy shared by the pricing core and its collaborators.
package apperr

import (
	"errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeInvalidInput marks a malformed or out-of-domain request field.
	TypeInvalidInput Type = "INVALID_INPUT"

	// TypeUpstreamUnavailable marks a collaborator (market API, database, mail API) that failed or timed out.
	TypeUpstreamUnavailable Type = "UPSTREAM_UNAVAILABLE"

	// TypeNotFound marks a missing record.
	TypeNotFound Type = "NOT_FOUND"

	// TypeUnauthorized marks a request without a valid session.
	TypeUnauthorized Type = "UNAUTHORIZED"

	// TypeInternal marks everything else.
	TypeInternal Type = "INTERNAL"
)

// Error is a categorized error with an optional offending field.
type Error struct {
	Type    Type   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// InvalidInput creates a field-level validation error.
func InvalidInput(field, format string, args ...any) *Error {
	return &Error{
		Type:    TypeInvalidInput,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// UpstreamUnavailable wraps a collaborator failure.
func UpstreamUnavailable(message string, cause error) *Error {
	return &Error{Type: TypeUpstreamUnavailable, Message: message, Cause: cause}
}

// NotFound creates a not found error
func NotFound(resource, id string) *Error {
	return &Error{Type: TypeNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Unauthorized creates an authentication error.
func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// TypeOf returns the category of err, or TypeInternal when err carries none.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return TypeInternal
}

// Is reports whether err (or anything it wraps) is of type t.
func Is(err error, t Type) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}
