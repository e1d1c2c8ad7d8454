// Package errors defines the typed error taxonomy returned at the HTTP
// boundary. Core packages wrap stdlib errors; handlers translate anything
// that reaches them into an APIError.
package errors

import (
	"fmt"
	"net/http"
)

// APIError is the wire shape of every non-2xx response body
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails attaches free-form context for the client
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

func newError(code ErrorCode, status int, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: status}
}

// NotFound reports a missing resource by name ("poll", "question"...)
func NotFound(resource string) *APIError {
	return newError(ErrNotFound, http.StatusNotFound, resource+" not found")
}

// BadRequest reports a request the domain rejects (closed poll, bad state)
func BadRequest(message string) *APIError {
	return newError(ErrBadRequest, http.StatusBadRequest, message)
}

// ValidationError reports a single invalid field
func ValidationError(field, message string) *APIError {
	err := newError(ErrValidation, http.StatusUnprocessableEntity, message)
	err.Field = field
	return err
}

// Unauthorized reports a missing or invalid credential
func Unauthorized(message string) *APIError {
	return newError(ErrUnauthorized, http.StatusUnauthorized, message)
}

// Forbidden reports an authenticated caller lacking a role
func Forbidden(message string) *APIError {
	return newError(ErrForbidden, http.StatusForbidden, message)
}

// Conflict reports a uniqueness or state collision
func Conflict(message string) *APIError {
	return newError(ErrConflict, http.StatusConflict, message)
}

// Internal reports a failure the caller cannot act on
func Internal(message string) *APIError {
	return newError(ErrInternalError, http.StatusInternalServerError, message)
}
