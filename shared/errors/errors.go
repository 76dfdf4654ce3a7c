package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Client errors (4xx equivalent)
	ErrorTypeInvalidInput  ErrorType = "INVALID_INPUT"
	ErrorTypeRateLimited   ErrorType = "RATE_LIMITED"
	ErrorTypeUnprocessable ErrorType = "UNPROCESSABLE"

	// Server errors (5xx equivalent)
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
	ErrorTypeBadGateway  ErrorType = "BAD_GATEWAY"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Stack      []string               `json:"-"`
	Cause      error                  `json:"-"`
	StatusCode int                    `json:"-"`
	Retryable  bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// captureStack captures the current stack trace
func captureStack() []string {
	var stack []string
	for i := 2; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn != nil && !strings.Contains(fn.Name(), "runtime.") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return stack
}

// New creates a new error with the status code implied by its type
func New(errorType ErrorType, code, message string) *Error {
	e := &Error{
		Type:    errorType,
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}

	switch errorType {
	case ErrorTypeInvalidInput:
		e.StatusCode = http.StatusBadRequest
	case ErrorTypeUnprocessable:
		e.StatusCode = http.StatusUnprocessableEntity
	case ErrorTypeRateLimited:
		e.StatusCode = http.StatusTooManyRequests
		e.Retryable = true
	case ErrorTypeTimeout:
		e.StatusCode = http.StatusGatewayTimeout
		e.Retryable = true
	case ErrorTypeUnavailable:
		e.StatusCode = http.StatusServiceUnavailable
		e.Retryable = true
	case ErrorTypeBadGateway:
		e.StatusCode = http.StatusBadGateway
		e.Retryable = true
	default:
		e.StatusCode = http.StatusInternalServerError
	}

	return e
}

// Common error constructors
func InvalidInput(field string, reason string) *Error {
	return New(ErrorTypeInvalidInput, "INVALID_INPUT",
		fmt.Sprintf("Invalid input for field '%s': %s", field, reason)).
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func RateLimited() *Error {
	return New(ErrorTypeRateLimited, "RATE_LIMITED", "Too many requests")
}

func Unprocessable(reason string) *Error {
	return New(ErrorTypeUnprocessable, "UPSTREAM_REJECTED", reason)
}

func Internal(message string) *Error {
	return New(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func Unavailable(service string) *Error {
	return New(ErrorTypeUnavailable, "SERVICE_UNAVAILABLE",
		fmt.Sprintf("%s is temporarily unavailable", service)).
		WithDetails("service", service)
}

func BadGateway(service string, cause error) *Error {
	return New(ErrorTypeBadGateway, "UPSTREAM_FAILURE",
		fmt.Sprintf("%s request failed", service)).
		WithDetails("service", service).
		WithCause(cause)
}

func Timeout(operation string) *Error {
	return New(ErrorTypeTimeout, "TIMEOUT",
		fmt.Sprintf("Operation '%s' timed out", operation)).
		WithDetails("operation", operation)
}

// As extracts an *Error anywhere in the chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if e, ok := As(err); ok {
		return e.Type == errorType
	}
	return false
}

// GetCode returns the error code if it's our error type
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "UNKNOWN"
}

// IsRetryable reports whether the caller may try the same request again
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// WriteHTTP writes err as {"error":{...}} using its status code.
// Errors that are not *Error are reported as internal without leaking their text.
func WriteHTTP(w http.ResponseWriter, err error) {
	e, ok := As(err)
	if !ok {
		e = Internal("internal server error").WithCause(err)
	}

	w.Header().Set("Content-Type", "application/json")
	if e.Type == ErrorTypeRateLimited {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: e})
}
