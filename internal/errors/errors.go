// Package errors defines the structured errors returned by the consultation service.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of consultation error.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrSessionClosed   ErrorCode = "SESSION_CLOSED"    // 409
	ErrRateLimited     ErrorCode = "RATE_LIMITED"      // 429
	ErrTooManySessions ErrorCode = "TOO_MANY_SESSIONS" // 503
	ErrStateCorruption ErrorCode = "STATE_CORRUPTION"  // 500
	ErrJudgeFailed     ErrorCode = "JUDGE_FAILED"      // 502
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// ConsultError is a structured error with code, HTTP status and details.
type ConsultError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ConsultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ConsultError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ConsultError {
	return &ConsultError{
		Code:    ErrInvalidRequest,
		Status:  http.StatusBadRequest,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown or expired session.
func NewNotFound(sessionID string) *ConsultError {
	return &ConsultError{
		Code:    ErrNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("consultation not found: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewSessionClosed creates a 409 error for turns sent to a finished session.
func NewSessionClosed(sessionID, stage string) *ConsultError {
	return &ConsultError{
		Code:    ErrSessionClosed,
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("consultation %s has ended (stage %s)", sessionID, stage),
		Details: map[string]any{"session_id": sessionID, "stage": stage},
	}
}

// NewRateLimited creates a 429 error.
func NewRateLimited(client string) *ConsultError {
	return &ConsultError{
		Code:    ErrRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: "too many requests, slow down",
		Details: map[string]any{"client": client},
	}
}

// NewTooManySessions creates a 503 error when the session table is full.
func NewTooManySessions(max int) *ConsultError {
	return &ConsultError{
		Code:    ErrTooManySessions,
		Status:  http.StatusServiceUnavailable,
		Message: fmt.Sprintf("too many active consultations (max %d)", max),
		Details: map[string]any{"max_sessions": max},
	}
}

// NewStateCorruption creates a 500 error for a broken session invariant.
func NewStateCorruption(err error) *ConsultError {
	return &ConsultError{
		Code:    ErrStateCorruption,
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
		cause:   err,
	}
}

// NewJudgeFailed creates a 502 error for a failed model-assisted judgement.
func NewJudgeFailed(provider string, err error) *ConsultError {
	return &ConsultError{
		Code:    ErrJudgeFailed,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("%s judge: %v", provider, err),
		Details: map[string]any{"provider": provider},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ConsultError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ConsultError{
		Code:    ErrInternal,
		Status:  http.StatusInternalServerError,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err, or anything it wraps, is a ConsultError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ConsultError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns the ConsultError in err's chain, or nil.
func As(err error) *ConsultError {
	var cErr *ConsultError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	return nil
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	if cErr := As(err); cErr != nil && cErr.Status != 0 {
		return cErr.Status
	}
	return http.StatusInternalServerError
}
