package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Errno represents a structured error with a code and a user-facing message.
type Errno struct {
	// Code is the unique error code
	Code int `json:"code"`

	// HTTP is the HTTP status code to return
	HTTP int `json:"-"`

	// Message is the user-facing message
	Message string `json:"message"`

	cause error
}

// New creates a new Errno with the given parameters.
func New(code int, httpStatus int, message string) *Errno {
	return &Errno{
		Code:    code,
		HTTP:    httpStatus,
		Message: message,
	}
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Cause returns the underlying cause, or nil.
func (e *Errno) Cause() error {
	return e.cause
}

// WithCause creates a new Errno with the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	return &Errno{
		Code:    e.Code,
		HTTP:    e.HTTP,
		Message: e.Message,
		cause:   cause,
	}
}

// WithMessage creates a new Errno with a custom message.
func (e *Errno) WithMessage(msg string) *Errno {
	return &Errno{
		Code:    e.Code,
		HTTP:    e.HTTP,
		Message: msg,
		cause:   e.cause,
	}
}

// WithMessagef creates a new Errno with a formatted message.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// HTTPStatus returns the HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// Is checks if this error matches the target error code.
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

// FromError converts any error to Errno.
// If err wraps an Errno, that Errno is returned. Otherwise err is wrapped as ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// GetCode returns the error code from an error.
// Returns -1 if the error does not wrap an Errno.
func GetCode(err error) int {
	var e *Errno
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}
