package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so cloned errors still
// match their predefined origin.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrAuth                 = New("FORBIDDEN", http.StatusForbidden, "Operation not permitted")
	ErrNoToken              = New("NO_TOKEN", http.StatusForbidden, "no valid token")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrMissingID            = New("MISSING_ID", http.StatusBadRequest, "missing resource id")
	ErrUnprocessable        = New("UNPROCESSABLE_ENTITY", http.StatusUnprocessableEntity, "unable to process the provided data")
	ErrUnsupportedMediaType = New("UNSUPPORTED_MEDIA_TYPE", http.StatusUnsupportedMediaType, "content type must be application/json")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrNotImplemented       = New("NOT_IMPLEMENTED", http.StatusNotImplemented, "method not implemented")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrTaskTimeout          = New("TASK_TIMEOUT", http.StatusGatewayTimeout, "Task did not complete in time")

	// ErrCacheMiss is returned by cache repositories when a key is absent.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	// ErrDocumentNotFound is returned by stores when no document matches.
	ErrDocumentNotFound = New("DOCUMENT_NOT_FOUND", http.StatusNotFound, "document not found")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Validationf is a shorthand for a 400 carrying a formatted reason.
func Validationf(format string, args ...interface{}) *Error {
	return Clone(ErrValidation, fmt.Sprintf(format, args...))
}
