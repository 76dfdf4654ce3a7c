package handler

import (
	"net/http"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/middleware"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/recovery"
)

// RouterConfig collects the middleware the proxy runs
type RouterConfig struct {
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *logging.Logger
}

// NewRouter builds the middleware chain:
// recovery -> correlation ids -> CORS -> rate limit -> metrics -> routes
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	var next http.Handler = mux
	if cfg.Metrics != nil {
		next = cfg.Metrics.HTTPMiddleware(next)
	}
	if cfg.RateLimiter != nil {
		next = cfg.RateLimiter.Middleware(next)
	}
	next = middleware.CORS(cfg.AllowedOrigins, next)
	next = logging.CorrelationMiddleware(next)

	panics := recovery.NewPanicHandler(cfg.Logger,
		recovery.WithStackLogging(true),
		recovery.WithPanicCallback(func(interface{}, []byte) {
			if cfg.Metrics != nil {
				cfg.Metrics.PanicsRecovered.Inc()
			}
		}),
	)
	return panics.HTTPMiddleware(next)
}
