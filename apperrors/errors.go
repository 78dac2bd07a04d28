// Package apperrors carries error codes and HTTP statuses from services to
// the transport layer.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeEmptyMessage     ErrorCode = "EMPTY_MESSAGE"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeFetchInFlight    ErrorCode = "FETCH_IN_FLIGHT"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvariant        ErrorCode = "INVARIANT_VIOLATION"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// AppError is an error that knows how to present itself to a client.
type AppError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Details  any       `json:"details,omitempty"`
	Err      error     `json:"-"`
	HTTPCode int       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on code so that wrapped copies compare equal to the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{Code: code, Message: message, HTTPCode: httpCode}
}

func Wrap(err error, code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{Code: code, Message: message, HTTPCode: httpCode, Err: err}
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details any) *AppError {
	c := *e
	c.Details = details
	return &c
}

var (
	ErrValidation    = New(CodeValidationFailed, "validation failed", http.StatusBadRequest)
	ErrEmptyMessage  = New(CodeEmptyMessage, "message text is empty", http.StatusBadRequest)
	ErrUnauthorized  = New(CodeUnauthorized, "missing user identity", http.StatusUnauthorized)
	ErrForbidden     = New(CodeForbidden, "not a member of this match", http.StatusForbidden)
	ErrNotFound      = New(CodeNotFound, "not found", http.StatusNotFound)
	ErrFetchInFlight = New(CodeFetchInFlight, "a feed fetch is already in progress", http.StatusConflict)
	ErrConflict      = New(CodeConflict, "concurrent update, try again", http.StatusConflict)
	ErrInvariant     = New(CodeInvariant, "match invariant violated", http.StatusInternalServerError)
	ErrInternal      = New(CodeInternalError, "internal error", http.StatusInternalServerError)
)

// Validation builds a validation error with a specific message.
func Validation(message string) *AppError {
	return &AppError{Code: CodeValidationFailed, Message: message, HTTPCode: http.StatusBadRequest}
}

// From extracts an *AppError from err, falling back to ErrInternal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternalError, "internal error", http.StatusInternalServerError)
}
