package logging

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Context keys for correlation IDs
type contextKey string

const (
	CorrelationIDKey  contextKey = "correlation_id"
	RequestIDKey      contextKey = "request_id"
	AttemptIDKey      contextKey = "attempt_id"
	AddressKey        contextKey = "address"
	CorrelationHeader            = "X-Correlation-ID"
	RequestIDHeader              = "X-Request-ID"
)

// CorrelationMiddleware adds correlation IDs to HTTP requests
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		correlationID := r.Header.Get(CorrelationHeader)
		if correlationID == "" {
			correlationID = GenerateCorrelationID()
		}
		ctx = WithCorrelationID(ctx, correlationID)

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		ctx = WithRequestID(ctx, requestID)

		w.Header().Set(CorrelationHeader, correlationID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return "corr-" + uuid.New().String()
}

// GenerateRequestID generates a new request ID
func GenerateRequestID() string {
	return "req-" + uuid.New().String()
}

// GenerateAttemptID generates an identifier for one login attempt
func GenerateAttemptID() string {
	return "login-" + uuid.New().String()
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAttemptID tags ctx with the login attempt being processed
func WithAttemptID(ctx context.Context, attemptID string) context.Context {
	return context.WithValue(ctx, AttemptIDKey, attemptID)
}

// WithAddress tags ctx with the derived account address
func WithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, AddressKey, address)
}

func GetCorrelationID(ctx context.Context) string {
	if val, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return val
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		return val
	}
	return ""
}

func GetAttemptID(ctx context.Context) string {
	if val, ok := ctx.Value(AttemptIDKey).(string); ok {
		return val
	}
	return ""
}

func GetAddress(ctx context.Context) string {
	if val, ok := ctx.Value(AddressKey).(string); ok {
		return val
	}
	return ""
}
