package execenv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a stable, machine-readable code for execenv failures —
// stable so a caller (or a test) can branch on failure kind without
// string-matching Error().
type ErrorCode string

const (
	// ErrorCodeHostCommandTimeout marks a command killed for exceeding
	// its overall deadline.
	ErrorCodeHostCommandTimeout ErrorCode = "ERR_HOST_COMMAND_TIMEOUT"
	// ErrorCodeHostIdleTimeout marks a command killed for producing no
	// output within its idle window (likely stuck on an interactive
	// prompt).
	ErrorCodeHostIdleTimeout ErrorCode = "ERR_HOST_IDLE_TIMEOUT"
)

// CodedError exposes a stable code for programmatic handling.
type CodedError interface {
	error
	Code() ErrorCode
}

type codedError struct {
	code    ErrorCode
	message string
	cause   error
}

func (e *codedError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.message)
	if e.cause == nil {
		return msg
	}
	if msg == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %v", msg, e.cause)
}

func (e *codedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *codedError) Code() ErrorCode {
	if e == nil {
		return ""
	}
	return e.code
}

// NewCodedError creates a coded error with a formatted message.
func NewCodedError(code ErrorCode, format string, args ...any) error {
	return &codedError{
		code:    code,
		message: fmt.Sprintf(format, args...),
	}
}

// WrapCodedError wraps an existing cause with a stable error code.
func WrapCodedError(code ErrorCode, cause error, format string, args ...any) error {
	if cause == nil {
		return NewCodedError(code, format, args...)
	}
	return &codedError{
		code:    code,
		message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// ErrorCodeOf extracts the machine-readable code, if any.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsErrorCode reports whether err carries a specific machine-readable code.
func IsErrorCode(err error, code ErrorCode) bool {
	return ErrorCodeOf(err) == code
}
