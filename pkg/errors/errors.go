// Package errors provides structured error types for maskcloud.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the engine, CLI and API
//   - Machine-readable error codes for programmatic handling
//   - A fatal/recoverable split the caller can act on
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The engine reports exactly four codes for input problems:
//   - INVALID_MASK: the mask image could not be decoded or is empty
//   - EMPTY_CANVAS: the mask leaves no drawable pixel
//   - FONT_LOAD: the font resource is unreadable or unsupported
//   - EMPTY_VOCABULARY: filtering left no word to place
//
// The first three are fatal: retrying with identical input reproduces them.
// EMPTY_VOCABULARY is recoverable; callers may retry with relaxed filters.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidMask, "mask has zero size")
//	if errors.Is(err, errors.ErrCodeInvalidMask) {
//	    // Handle bad upload
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFontLoad, origErr, "parse font")
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Engine input errors
	ErrCodeInvalidMask     Code = "INVALID_MASK"
	ErrCodeEmptyCanvas     Code = "EMPTY_CANVAS"
	ErrCodeFontLoad        Code = "FONT_LOAD"
	ErrCodeEmptyVocabulary Code = "EMPTY_VOCABULARY"

	// Request validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidColor  Code = "INVALID_COLOR"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Infrastructure errors
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err is an input failure that retrying with the
// same input would reproduce.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidMask, ErrCodeEmptyCanvas, ErrCodeFontLoad:
		return true
	}
	return false
}

// IsRecoverable reports whether the caller may retry with relaxed options.
func IsRecoverable(err error) bool {
	return GetCode(err) == ErrCodeEmptyVocabulary
}

// HTTPStatus maps an error code to the status the API responds with.
func HTTPStatus(code Code) int {
	switch code {
	case ErrCodeInvalidMask, ErrCodeFontLoad, ErrCodeInvalidInput,
		ErrCodeInvalidFormat, ErrCodeInvalidColor:
		return http.StatusBadRequest
	case ErrCodeEmptyCanvas, ErrCodeEmptyVocabulary:
		return http.StatusUnprocessableEntity
	case ErrCodeNotFound, ErrCodeFileNotFound:
		return http.StatusNotFound
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
