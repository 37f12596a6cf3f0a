package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeHistoryNotFound ErrorCode = "HISTORY_NOT_FOUND"

	// Admission
	ErrCodeAdmissionDenied      ErrorCode = "ADMISSION_DENIED"
	ErrCodeAdmissionUnavailable ErrorCode = "ADMISSION_UNAVAILABLE"
	ErrCodeRateLimited          ErrorCode = "RATE_LIMITED"

	// Inference
	ErrCodeModel               ErrorCode = "MODEL_ERROR"
	ErrCodeUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	ErrCodeUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeStorage  ErrorCode = "STORAGE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// SessionNotFound covers both never-issued tokens and sessions removed by the
// reaper; callers cannot and need not tell them apart.
func SessionNotFound() *AppError {
	return New(ErrCodeSessionNotFound, "Session not found")
}

func HistoryNotFound() *AppError {
	return New(ErrCodeHistoryNotFound, "History record not found")
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

// AdmissionDenied is returned when a session already has limit requests in
// flight. It never consumes a slot and is not retried server side.
func AdmissionDenied(limit int) *AppError {
	return New(ErrCodeAdmissionDenied, "Too many concurrent requests for this session").
		WithDetails(map[string]int{"limit": limit})
}

func AdmissionUnavailable(cause error) *AppError {
	return Wrap(ErrCodeAdmissionUnavailable, "Admission control unavailable", cause)
}

func RateLimited(message string) *AppError {
	return New(ErrCodeRateLimited, message)
}

func ModelError(cause error) *AppError {
	return Wrap(ErrCodeModel, "The model could not process this image", cause)
}

func UpstreamRateLimited(cause error) *AppError {
	return Wrap(ErrCodeUpstreamRateLimited, "Inference provider is rate limiting requests", cause)
}

func UpstreamTimeout(cause error) *AppError {
	return Wrap(ErrCodeUpstreamTimeout, "Inference provider timed out", cause)
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// Persistence wraps a storage fault with the operation and session token it
// happened under.
func Persistence(op, sessionToken string, cause error) *AppError {
	details := map[string]string{"operation": op}
	if sessionToken != "" {
		details["sessionToken"] = sessionToken
	}
	return Database(cause).WithDetails(details)
}

func Storage(cause error) *AppError {
	return Wrap(ErrCodeStorage, "Artifact storage error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
