package store

import (
	"fmt"
	"net/http"
)

// Error is a storage error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// Sentinel errors.
var (
	// ErrNotFound is returned by single-item lookups for an unknown hash key.
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "entry not found",
	}

	// ErrAlreadyExists is returned by InsertEntry when the hash key is taken.
	// Callers fall back to a recency touch.
	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "entry already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}
)
