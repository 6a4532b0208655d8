// Package errors defines the sentinel errors used across the search engine
// and their mapping onto HTTP status codes and machine-readable error codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyQuery      = errors.New("query is empty")
	ErrQueryTooShort   = errors.New("query too short")
	ErrQueryTooLong    = errors.New("query too long")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrAccessDenied    = errors.New("access denied")
	ErrSearchTimeout   = errors.New("search timed out")
	ErrMessageNotFound = errors.New("message not found")
	ErrInternal        = errors.New("internal error")
)

// AppError wraps a sentinel error with a caller-facing message and an
// explicit HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf builds an AppError with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err onto an HTTP status. Validation errors are
// 400-class, authorization errors 403, resource errors 500-class.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrQueryTooShort),
		errors.Is(err, ErrQueryTooLong),
		errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSearchTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code for err, included in error
// payloads alongside the HTTP status.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return "EMPTY_QUERY"
	case errors.Is(err, ErrQueryTooShort):
		return "QUERY_TOO_SHORT"
	case errors.Is(err, ErrQueryTooLong):
		return "QUERY_TOO_LONG"
	case errors.Is(err, ErrInvalidQuery):
		return "INVALID_QUERY"
	case errors.Is(err, ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, ErrSearchTimeout):
		return "SEARCH_TIMEOUT"
	case errors.Is(err, ErrMessageNotFound):
		return "MESSAGE_NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
