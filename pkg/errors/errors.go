// Package errors provides structured error types for the overlay engine.
//
// This package defines error codes and types that enable:
//   - A single typed failure returned from every render
//   - Machine-readable error codes for the CLI and HTTP server
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map one-to-one onto the failure taxonomy of the render pipeline:
//   - MARKUP: malformed alignment directive or superscript span (never fatal)
//   - FETCH_FAILED: a background or overlay source could not be retrieved
//   - DECODE_FAILED / ENCODE_FAILED: codec failures
//   - SIZE_LIMIT_EXCEEDED: payload or canvas over the configured bound
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "canvas width must be positive, got %d", w)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFetch, origErr, "fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidColor Code = "INVALID_COLOR"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Markup errors are recoverable: the text renders literally.
	ErrCodeMarkup Code = "MARKUP"

	// Resource errors
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeFetch    Code = "FETCH_FAILED"
	ErrCodeTimeout  Code = "TIMEOUT"

	// Codec errors
	ErrCodeDecode Code = "DECODE_FAILED"
	ErrCodeEncode Code = "ENCODE_FAILED"
	ErrCodeFont   Code = "FONT_FAILED"

	// Resource bound errors
	ErrCodeSizeLimit Code = "SIZE_LIMIT_EXCEEDED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface. A cause whose text repeats the
// message is not printed twice.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
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

// Ensure wraps err with code unless it already carries a code.
// It keeps the first classification made closest to the failure.
func Ensure(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if GetCode(err) != "" {
		return err
	}
	return Wrap(code, err, format, args...)
}

// SizeLimitError reports which bound a request exceeded.
type SizeLimitError struct {
	What  string // "payload", "canvas", "gif frames", ...
	Got   int64
	Limit int64
}

// Error implements the error interface.
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s exceeds limit: %d > %d", e.What, e.Got, e.Limit)
}

// Code returns the error code for this error type.
func (e *SizeLimitError) Code() Code {
	return ErrCodeSizeLimit
}

// SizeLimit builds a coded error for an exceeded bound.
func SizeLimit(what string, got, limit int64) *Error {
	cause := &SizeLimitError{What: what, Got: got, Limit: limit}
	return &Error{Code: ErrCodeSizeLimit, Message: cause.Error(), Cause: cause}
}
