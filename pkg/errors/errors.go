// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown         = "UNKNOWN_ERROR"
	CodeInvalidBound    = "INVALID_BOUND"
	CodeIndexOverflow   = "INDEX_OVERFLOW"
	CodeShutdownFailure = "SHUTDOWN_FAILURE"
	CodeQueueClosed     = "QUEUE_CLOSED"
	CodeConfigError     = "CONFIG_ERROR"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeOutputError     = "OUTPUT_ERROR"
	CodeVerifyMismatch  = "VERIFY_MISMATCH"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidBound    = New(CodeInvalidBound, "invalid bound")
	ErrIndexOverflow   = New(CodeIndexOverflow, "compressed index outside bitmap")
	ErrShutdownFailure = New(CodeShutdownFailure, "worker pool failed to shut down")
	ErrQueueClosed     = New(CodeQueueClosed, "dispatch queue closed")
	ErrConfigError     = New(CodeConfigError, "configuration error")
	ErrDatabaseError   = New(CodeDatabaseError, "database error")
	ErrOutputError     = New(CodeOutputError, "output error")
	ErrVerifyMismatch  = New(CodeVerifyMismatch, "sieve disagrees with reference")
)

// IsInvalidBound checks if the error is an invalid bound error.
func IsInvalidBound(err error) bool {
	return errors.Is(err, ErrInvalidBound)
}

// IsIndexOverflow checks if the error is an index overflow defect.
func IsIndexOverflow(err error) bool {
	return errors.Is(err, ErrIndexOverflow)
}

// IsShutdownFailure checks if the error is a worker shutdown failure.
func IsShutdownFailure(err error) bool {
	return errors.Is(err, ErrShutdownFailure)
}

// IsQueueClosed checks if the error reports use of a closed queue.
func IsQueueClosed(err error) bool {
	return errors.Is(err, ErrQueueClosed)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Fatal reports whether the error signals a broken internal invariant rather
// than bad input. Fatal errors are never retried.
func Fatal(err error) bool {
	switch GetErrorCode(err) {
	case CodeIndexOverflow, CodeShutdownFailure:
		return true
	default:
		return false
	}
}
