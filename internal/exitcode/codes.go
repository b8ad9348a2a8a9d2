// Package exitcode defines structured exit codes for reap commands.
// These codes let schedulers and scripts react to specific conditions
// without parsing error messages.
//
// # Exit Code Ranges
//
//   - 0: Success (including runs where individual processes failed)
//   - 1-9: General errors (usage, internal, process table)
//   - 10-19: Resource not found
//   - 50-59: Conflict/state errors
//
// # Usage
//
//	return exitcode.Newf(exitcode.ErrUsage, "invalid timeout: %v", v)
//	return exitcode.Busy("cleanup")                 // Exit code 52
//
//	code := exitcode.Code(err)  // Returns ErrGeneral for non-coded errors
package exitcode

import (
	"errors"
	"fmt"
)

// Exit codes for reap commands.
const (
	// Success indicates the command completed.
	Success = 0

	// General errors (1-9)
	ErrGeneral     = 1 // General/unknown error
	ErrUsage       = 2 // Invalid arguments or usage
	ErrInternal    = 3 // Internal error (bug)
	ErrUnavailable = 4 // Process table could not be read

	// Resource not found (10-19)
	ErrFileNotFound = 13 // File or path not found

	// Conflict/state errors (50-59)
	ErrAlreadyExists = 51 // Resource already exists
	ErrBusy          = 52 // Resource is busy
)

// Error wraps an error with a specific exit code.
type Error struct {
	Code    int
	Message string
	Cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new coded error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf wraps an existing error with a code and printf-style message.
func Wrapf(code int, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Code extracts the exit code from an error.
// Returns ErrGeneral (1) if the error doesn't have a code.
func Code(err error) int {
	if err == nil {
		return Success
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrGeneral
}

// Newf creates a new coded error with printf-style formatting.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Convenience constructors for common error types.

// FileNotFound returns an error for a missing file.
func FileNotFound(path string) *Error {
	return Newf(ErrFileNotFound, "file not found: %s", path)
}

// Unavailable returns an error for an unreadable process table.
func Unavailable(cause error) *Error {
	return Wrap(ErrUnavailable, "process table unavailable", cause)
}

// AlreadyExists returns an error when a resource already exists.
func AlreadyExists(resource string) *Error {
	return Newf(ErrAlreadyExists, "%s already exists", resource)
}

// Busy returns an error when another invocation holds a resource.
func Busy(resource string) *Error {
	return Newf(ErrBusy, "%s already in progress", resource)
}
