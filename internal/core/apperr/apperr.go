package apperr

import (
	"errors"
	"net/http"
)

// Error is a domain error carrying the HTTP status it maps to.
// Msg is safe to return to clients; Err is only logged.
type Error struct {
	Code    int
	Msg     string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &Error{Code: http.StatusBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Code: http.StatusUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &Error{Code: http.StatusForbidden, Msg: msg} }
func NotFound(msg string) error     { return &Error{Code: http.StatusNotFound, Msg: msg} }
func Conflict(msg string) error     { return &Error{Code: http.StatusConflict, Msg: msg} }

func Internal(msg string, err error) error {
	return &Error{Code: http.StatusInternalServerError, Msg: msg, Err: err}
}

// Validation is a 400 with per-field details attached.
func Validation(msg string, details any) error {
	return &Error{Code: http.StatusBadRequest, Msg: msg, Details: details}
}

// CodeOf returns the HTTP status for err; anything that is not an *Error is a 500.
func CodeOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return http.StatusInternalServerError
}

// Is reports whether err is an *Error with the given status.
func Is(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}
