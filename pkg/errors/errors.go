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

// Is matches errors by code so clones and wrapped copies compare equal to the predefined values.
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

// StatusClientClosedRequest reports a request abandoned by the client.
const StatusClientClosedRequest = 499

// Predefined errors for common scenarios.
var (
	ErrInvalidAudio      = New("INVALID_AUDIO", http.StatusUnprocessableEntity, "audio sample is empty or unreadable")
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrDuplicateIdentity = New("DUPLICATE_IDENTITY", http.StatusConflict, "student id already enrolled")
	ErrDuplicateClass    = New("DUPLICATE_CLASS", http.StatusConflict, "class name already exists")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrTimeout           = New("CAPTURE_TIMEOUT", http.StatusRequestTimeout, "no audio received within the listen window")
	ErrCancelled         = New("REQUEST_CANCELLED", StatusClientClosedRequest, "request cancelled before audio was received")
	ErrStorage           = New("STORAGE_ERROR", http.StatusServiceUnavailable, "storage failure")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Storage wraps a persistence-layer failure.
func Storage(err error, message string) *Error {
	return Wrap(err, ErrStorage.Code, ErrStorage.Status, message)
}

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
