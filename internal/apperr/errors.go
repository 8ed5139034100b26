// Package apperr defines the typed application errors shared by the auth and
// cache core. Each error carries an HTTP-like status so that handlers and
// middleware can translate failures without matching on message strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Expired is distinct from NotFound so the UI can offer a
// "resend" affordance instead of a bare invalid-link failure.
const (
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeExpired      = "expired"
	CodeConflict     = "conflict"
	CodeValidation   = "validation"
	CodeCache        = "cache_error"
)

// Error is a typed application error with an HTTP-like severity.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func Expired(msg string) *Error {
	return &Error{Status: http.StatusGone, Code: CodeExpired, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func Cache(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeCache, Message: msg}
}

// CodeOf returns the application error code of err, or "" when err is not an
// *Error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf returns the HTTP status of err, falling back to 500 for untyped
// errors.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}
