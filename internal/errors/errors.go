package errors

import (
	"net/http"
)

// APIError carries an HTTP status and a public message alongside the
// internal error it wraps.
type APIError struct {
	Status   int    `json:"status"`
	Message  string `json:"error"`
	Internal error  `json:"-"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *APIError) Unwrap() error {
	return e.Internal
}

func newAPIError(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(message string, err error) *APIError {
	return newAPIError(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *APIError {
	return newAPIError(http.StatusUnauthorized, message, err)
}

func Forbidden(message string, err error) *APIError {
	return newAPIError(http.StatusForbidden, message, err)
}

func NotFound(message string, err error) *APIError {
	return newAPIError(http.StatusNotFound, message, err)
}

func Conflict(message string, err error) *APIError {
	return newAPIError(http.StatusConflict, message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return newAPIError(http.StatusUnprocessableEntity, message, err)
}

// NewValidationError wraps request-binding failures
func NewValidationError(err error) *APIError {
	return newAPIError(http.StatusUnprocessableEntity, "Validation failed", err)
}

// Unavailable marks connectivity failures against a backing store. It is
// distinct from Internal so callers can tell "the store said no" apart
// from "the store is gone".
func Unavailable(message string, err error) *APIError {
	return newAPIError(http.StatusServiceUnavailable, message, err)
}

func Internal(err error) *APIError {
	return newAPIError(http.StatusInternalServerError, "Internal server error", err)
}
