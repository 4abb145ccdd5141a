// Package errors provides the typed domain errors returned by the catalog,
// membership and circulation packages.
//
// Callers branch on the code, never on the message:
//
//	if errors.Is(err, errors.ErrUnavailable) {
//	    // book is on loan or does not exist
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeInvalidRole       Code = "INVALID_ROLE"
	CodeInconsistentState Code = "INCONSISTENT_STATE"
	CodeForbidden         Code = "FORBIDDEN"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeValidation        Code = "VALIDATION"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnavailable       = &Error{Code: CodeUnavailable, Message: "unavailable"}
	ErrInvalidRole       = &Error{Code: CodeInvalidRole, Message: "invalid role"}
	ErrInconsistentState = &Error{Code: CodeInconsistentState, Message: "inconsistent state"}
	ErrForbidden         = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrRateLimited       = &Error{Code: CodeRateLimited, Message: "rate limit exceeded"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
)

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unavailablef creates an unavailable error with formatted message.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// InvalidRolef creates an invalid role error with formatted message.
func InvalidRolef(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidRole, Message: fmt.Sprintf(format, args...)}
}

// InconsistentStatef creates an inconsistent state error with formatted message.
func InconsistentStatef(format string, args ...any) *Error {
	return &Error{Code: CodeInconsistentState, Message: fmt.Sprintf(format, args...)}
}

// Forbiddenf creates a forbidden error with formatted message.
func Forbiddenf(format string, args ...any) *Error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf creates an already exists error with formatted message.
func AlreadyExistsf(format string, args ...any) *Error {
	return &Error{Code: CodeAlreadyExists, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a rate limit error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
