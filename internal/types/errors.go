// Package types provides common error types for proper error propagation
package types

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized error codes across the application
type ErrorCode string

const (
	// General errors
	ErrorCodeUnknown    ErrorCode = "UNKNOWN_ERROR"
	ErrorCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrorCodeForbidden  ErrorCode = "FORBIDDEN"
	ErrorCodeConflict   ErrorCode = "CONFLICT"
	ErrorCodeTimeout    ErrorCode = "TIMEOUT"
	ErrorCodeCancelled  ErrorCode = "CANCELLED"

	// Session errors
	ErrorCodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	ErrorCodeSessionNotActive  ErrorCode = "SESSION_NOT_ACTIVE"
	ErrorCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrorCodeSessionLocked     ErrorCode = "SESSION_LOCKED"

	// Ingestion errors
	ErrorCodeStreamActive   ErrorCode = "STREAM_ALREADY_ACTIVE"
	ErrorCodeNoActiveStream ErrorCode = "NO_ACTIVE_STREAM"
	ErrorCodeEmptyChunk     ErrorCode = "EMPTY_CHUNK"
	ErrorCodeChunkTooLarge  ErrorCode = "CHUNK_TOO_LARGE"

	// Organization errors
	ErrorCodeOrgNotFound       ErrorCode = "ORGANIZATION_NOT_FOUND"
	ErrorCodeInviteExpired     ErrorCode = "INVITATION_EXPIRED"
	ErrorCodeDuplicateEmail    ErrorCode = "DUPLICATE_EMAIL"
	ErrorCodeSubscriptionState ErrorCode = "SUBSCRIPTION_STATE_INVALID"
)

// ErrorSeverity indicates the severity of an error
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError represents a structured error with metadata
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Severity    ErrorSeverity          `json:"severity"`
	HTTPStatus  int                    `json:"http_status"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	RequestID   string                 `json:"request_id,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
	Retryable   bool                   `json:"retryable"`

	// Chain of errors for debugging
	Cause       error  `json:"-"`
	CauseString string `json:"cause,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithUserMessage sets a user-friendly error message
func (e *AppError) WithUserMessage(message string) *AppError {
	e.UserMessage = message
	return e
}

// ToJSON converts the error to JSON
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Severity:   SeverityError,
		HTTPStatus: httpStatus,
		Timestamp:  time.Now(),
		Retryable:  false,
	}
}

// NewAppErrorWithCause creates an error with an underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, httpStatus int, cause error) *AppError {
	err := NewAppError(code, message, httpStatus)
	err.Cause = cause
	if cause != nil {
		err.CauseString = cause.Error()
	}
	return err
}

// Common error constructors

// NewValidationError creates a validation error
func NewValidationError(message string, details ...string) *AppError {
	err := NewAppError(ErrorCodeValidation, message, http.StatusBadRequest)
	if len(details) > 0 {
		err.Details = details[0]
	}
	err.Severity = SeverityWarning
	return err
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *AppError {
	return NewAppError(
		ErrorCodeNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
	).WithContext("resource", resource).WithContext("id", id)
}

// NewForbiddenError creates a forbidden error for cross-tenant access attempts
func NewForbiddenError(resource string, organizationID string) *AppError {
	err := NewAppError(
		ErrorCodeForbidden,
		fmt.Sprintf("%s does not belong to the requesting organization", resource),
		http.StatusForbidden,
	).WithContext("resource", resource).WithContext("organization_id", organizationID)
	err.Severity = SeverityWarning
	return err
}

// NewConflictError creates a conflict error
func NewConflictError(code ErrorCode, message string) *AppError {
	err := NewAppError(code, message, http.StatusConflict)
	err.Severity = SeverityWarning
	return err
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	err := NewAppErrorWithCause(ErrorCodeInternal, message, http.StatusInternalServerError, cause)
	err.Severity = SeverityCritical
	return err
}

// NewSessionNotActiveError reports an operation against a session that is not
// currently in progress.
func NewSessionNotActiveError(sessionID string, status string) *AppError {
	err := NewConflictError(ErrorCodeSessionNotActive, "session is not active")
	return err.WithContext("session_id", sessionID).WithContext("status", status)
}

// NewInvalidTransitionError reports a state machine transition that is not
// legal from the current status.
func NewInvalidTransitionError(from, op string) *AppError {
	err := NewConflictError(
		ErrorCodeInvalidTransition,
		fmt.Sprintf("cannot %s a session in status %q", op, from),
	)
	return err.WithContext("from", from).WithContext("operation", op)
}

// HTTPStatusFromErrorCode maps error codes to HTTP status codes
func HTTPStatusFromErrorCode(code ErrorCode) int {
	switch code {
	case ErrorCodeValidation, ErrorCodeEmptyChunk:
		return http.StatusBadRequest
	case ErrorCodeNotFound, ErrorCodeSessionNotFound, ErrorCodeOrgNotFound:
		return http.StatusNotFound
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeConflict, ErrorCodeInvalidTransition, ErrorCodeSessionNotActive,
		ErrorCodeStreamActive, ErrorCodeSessionLocked:
		return http.StatusConflict
	case ErrorCodeChunkTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrorCodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Retryable
	}
	return false
}
