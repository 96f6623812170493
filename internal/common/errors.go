package common

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

// AppError carries everything the API needs to render a failure: the
// machine-readable code, the client message and the HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
	// RetryAfter, when positive, is sent as a Retry-After header in whole seconds.
	RetryAfter time.Duration
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap lets errors.Is match the wrapped sentinel.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// WithDetails sets the payload rendered under error.details.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithRetryAfter tells the client when the request is worth repeating.
func (e *AppError) WithRetryAfter(d time.Duration) *AppError {
	e.RetryAfter = d
	return e
}

// WriteAppError renders err if it wraps an AppError and reports whether it did.
// A zero status renders as 400 BAD_REQUEST.
func WriteAppError(w http.ResponseWriter, err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status, code := appErr.HTTPStatus, appErr.Code
	if status == 0 {
		status = http.StatusBadRequest
	}
	if code == "" {
		code = "BAD_REQUEST"
	}
	if appErr.RetryAfter > 0 {
		secs := int((appErr.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	JSONError(w, status, code, appErr.Message, appErr.Details)
	return true
}
