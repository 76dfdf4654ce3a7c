package recovery

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/quangdang46/talent-passport/shared/logging"
)

// PanicHandler handles panic recovery
type PanicHandler struct {
	logger       *logging.Logger
	onPanic      func(recovered interface{}, stack []byte)
	logStack     bool
	returnErrors bool
}

// Option configures PanicHandler
type Option func(*PanicHandler)

// WithPanicCallback sets a callback for when panic occurs
func WithPanicCallback(fn func(recovered interface{}, stack []byte)) Option {
	return func(ph *PanicHandler) {
		ph.onPanic = fn
	}
}

// WithStackLogging enables stack trace logging
func WithStackLogging(enabled bool) Option {
	return func(ph *PanicHandler) {
		ph.logStack = enabled
	}
}

// WithErrorReturn enables returning error details
func WithErrorReturn(enabled bool) Option {
	return func(ph *PanicHandler) {
		ph.returnErrors = enabled
	}
}

// NewPanicHandler creates a new panic handler
func NewPanicHandler(logger *logging.Logger, opts ...Option) *PanicHandler {
	ph := &PanicHandler{
		logger:   logger,
		logStack: true,
	}

	for _, opt := range opts {
		opt(ph)
	}

	return ph
}

// HTTPMiddleware returns an HTTP middleware for panic recovery
func (ph *PanicHandler) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ph.handleHTTPPanic(w, r, rec)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (ph *PanicHandler) handleHTTPPanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := debug.Stack()

	entry := ph.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"method":    r.Method,
		"path":      r.URL.Path,
		"recovered": fmt.Sprintf("%v", recovered),
	})
	if ph.logStack {
		entry = entry.WithField("stack", string(stack))
	}
	entry.Error("http handler panicked")

	if ph.onPanic != nil {
		ph.onPanic(recovered, stack)
	}

	if hub := sentry.CurrentHub(); hub != nil && hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetLevel(sentry.LevelFatal)
			scope.SetRequest(r)
			scope.SetContext("panic", map[string]interface{}{
				"path":      r.URL.Path,
				"method":    r.Method,
				"recovered": fmt.Sprintf("%v", recovered),
			})
			hub.CaptureException(fmt.Errorf("http panic: %v", recovered))
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)

	if ph.returnErrors {
		fmt.Fprintf(w, `{"error":{"type":"INTERNAL","code":"PANIC","message":%q}}`, fmt.Sprintf("%v", recovered))
	} else {
		fmt.Fprint(w, `{"error":{"type":"INTERNAL","code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
}

// SafeGoWithContext runs a goroutine with panic recovery and context
func SafeGoWithContext(ctx context.Context, logger *logging.Logger, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.WithContext(ctx).WithField("stack", string(debug.Stack())).
					Errorf("goroutine panic: %v", r)

				if hub := sentry.CurrentHub(); hub != nil && hub.Client() != nil {
					hub.CaptureException(fmt.Errorf("goroutine panic: %v", r))
				}
			}
		}()

		fn(ctx)
	}()
}
