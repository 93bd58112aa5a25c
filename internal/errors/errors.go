// Package errors provides coded domain errors for the clipboard history core.
//
// Background failures (OCR, AI, embedding) never reach a user; they are
// classified here so callers can decide whether to log and continue, retry on
// the next tick, or return an empty result.
//
//	switch errors.CodeOf(err) {
//	case errors.CodeProviderUnavailable:
//	    log.Warn("step skipped", "provider", errors.Provider(err), "error", err)
//	case errors.CodeStorageUnavailable:
//	    // retry next tick
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code. It doubles as the API error code.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeValidation          Code = "VALIDATION"
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"
	CodeInternal            Code = "INTERNAL"
)

// HTTPStatus maps the code to a response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeProviderUnavailable:
		return http.StatusBadGateway
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a coded domain error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	provider string // set for CodeProviderUnavailable
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error with the same Code, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && e.Code == t.Code
}

// HTTPStatus returns the response status for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation error"}
	ErrProviderUnavailable = &Error{Code: CodeProviderUnavailable, Message: "provider unavailable"}
	ErrStorageUnavailable  = &Error{Code: CodeStorageUnavailable, Message: "storage unavailable"}
)

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Provider names the provider behind a ProviderUnavailable error, or "".
func Provider(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.provider
	}
	return ""
}

// NotFoundf creates a not found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error carrying per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// ProviderUnavailable wraps a failed or timed-out call to an OCR, chat, or
// embedding provider.
func ProviderUnavailable(err error, provider string) *Error {
	return &Error{
		Code:     CodeProviderUnavailable,
		Message:  provider + " unavailable",
		provider: provider,
		cause:    err,
	}
}

// StorageUnavailable wraps a failure to open, read, or write the database.
func StorageUnavailable(err error, op string) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: op, cause: err}
}

// Wrap wraps err with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}
