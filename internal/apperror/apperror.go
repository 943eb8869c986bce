// Package apperror carries an HTTP status alongside a client-facing
// message so handlers can return domain failures as plain errors.
package apperror

import (
	"fmt"
	"net/http"
)

// Error is a failure with a status code and a message safe to show to the
// client.  Err holds the underlying cause, if any, for logging.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given status.
func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

func BadRequest(msg string) *Error   { return New(http.StatusBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(http.StatusUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(http.StatusForbidden, msg) }
func NotFound(msg string) *Error     { return New(http.StatusNotFound, msg) }
func Conflict(msg string) *Error     { return New(http.StatusConflict, msg) }

// Internal wraps err as a 500 with a generic message.
func Internal(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: msg, Err: err}
}
