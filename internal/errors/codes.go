package errors

// ErrorCode identifies a category of API error
type ErrorCode string

const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrBadRequest    ErrorCode = "BAD_REQUEST"
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)
