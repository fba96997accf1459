package domainerrors

import (
	"errors"
	"fmt"
)

// Code names a failure category. Transports map codes to their own status
// vocabulary; nothing here knows about HTTP.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"

	// Identity outcomes. Both surface as 400 so the client cannot tell a
	// taken username from a bad request body by status alone.
	CodeDuplicateUsername  Code = "duplicate_username"
	CodeInvalidCredentials Code = "invalid_credentials"

	// CodeUpstream covers every failure of the recognition, matching and
	// issuance engines.
	CodeUpstream Code = "upstream_failure"
)

// Error carries a stable code plus a client-safe message. Err holds the
// underlying cause for logs and is never rendered to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so callers can test with
// errors.Is(err, &Error{Code: CodeNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches msg and a cause. A cause that already carries a code keeps it;
// code only applies to plain errors.
func Wrap(err error, code Code, msg string) error {
	if existing, ok := As(err); ok {
		code = existing.Code
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
