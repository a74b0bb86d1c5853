package protocol

import "fmt"

// ErrorCode is the wire-level error category sent in an ERROR response.
type ErrorCode int

const (
	UnknownCommand  ErrorCode = 400
	InvalidArgument ErrorCode = 401
	FileNotFound    ErrorCode = 404
	InternalError   ErrorCode = 500
	NotLoaded       ErrorCode = 501
)

// CommandError is the error type every Video Source and session operation
// returns on failure. It always carries a wire code and a short,
// client-safe message; the handler never leaks more than this to a
// client — no stack traces or internal paths.
type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// Unwrap lets callers use errors.Is/errors.As against a wrapped cause, even
// though CommandError itself carries no underlying error — present for
// interface symmetry with internal/moq-style ParseError in the teacher.
func (e *CommandError) Unwrap() error { return nil }

func newErr(code ErrorCode, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Unknown builds an UnknownCommand error.
func Unknown(format string, args ...any) *CommandError { return newErr(UnknownCommand, format, args...) }

// Invalid builds an InvalidArgument error.
func Invalid(format string, args ...any) *CommandError { return newErr(InvalidArgument, format, args...) }

// NotFound builds a FileNotFound error.
func NotFound(format string, args ...any) *CommandError { return newErr(FileNotFound, format, args...) }

// Internal builds an InternalError error.
func Internal(format string, args ...any) *CommandError { return newErr(InternalError, format, args...) }

// Unloaded builds a NotLoaded error.
func Unloaded(format string, args ...any) *CommandError { return newErr(NotLoaded, format, args...) }

// AsCommandError extracts the wire code and message to send for any error,
// wrapping anything that isn't already a *CommandError as InternalError and
// leaving the original cause out of the client-facing message (callers log
// it separately, at debug level).
func AsCommandError(err error) *CommandError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*CommandError); ok {
		return ce
	}
	return Internal("internal error")
}
