package timeout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrTimeout is wrapped by Run when the operation's deadline passes
var ErrTimeout = errors.New("operation timed out")

// TimeoutConfig holds timeout configuration
type TimeoutConfig struct {
	Default  time.Duration
	Prover   time.Duration
	RPC      time.Duration
	Storage  time.Duration
	Upstream time.Duration
	HTTP     time.Duration
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Default:  30 * time.Second,
		Prover:   15 * time.Second,
		RPC:      15 * time.Second,
		Storage:  2 * time.Second,
		Upstream: 15 * time.Second,
		HTTP:     30 * time.Second,
	}
}

// WithTimeout creates a context with timeout
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 30 * time.Second // Default timeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Run executes fn under a deadline. If the deadline (not the parent) expires, the
// returned error wraps both ErrTimeout and context.DeadlineExceeded.
func Run(ctx context.Context, operation string, d time.Duration, fn func(context.Context) error) error {
	timeoutCtx, cancel := WithTimeout(ctx, d)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w after %v: %w", operation, ErrTimeout, d, err)
	}
	return err
}

// IsTimeout reports whether err came from an expired deadline
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// TimeoutMiddleware is an HTTP middleware that bounds request handling time
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":{"type":"TIMEOUT","code":"TIMEOUT","message":"Request timeout"}}`)
	}
}
