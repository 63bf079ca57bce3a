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
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrEmailTaken         = New("EMAIL_TAKEN", http.StatusConflict, "email is already registered")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Attendance domain.
	ErrNoActiveCode        = New("NO_ACTIVE_CODE", http.StatusConflict, "no active attendance code")
	ErrCodeExpired         = New("CODE_EXPIRED", http.StatusConflict, "attendance code has expired")
	ErrCodeMismatch        = New("CODE_MISMATCH", http.StatusBadRequest, "attendance code does not match")
	ErrDuplicateSubmission = New("DUPLICATE_SUBMISSION", http.StatusConflict, "attendance already submitted for this code")

	// Messaging domain.
	ErrEmptyBody   = New("EMPTY_BODY", http.StatusBadRequest, "message body is empty")
	ErrNoRecipient = New("NO_RECIPIENT", http.StatusBadRequest, "no recipient selected")
	ErrSelfMessage = New("SELF_MESSAGE", http.StatusBadRequest, "cannot message yourself")

	// Persistence collaborator failures surfaced unmodified.
	ErrPersistence = New("PERSISTENCE_ERROR", http.StatusInternalServerError, "persistence operation failed")

	// ErrCacheMiss signals a cache lookup that found nothing. Never surfaced
	// to clients.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
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
