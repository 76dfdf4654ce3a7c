package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	sharedErrors "github.com/quangdang46/talent-passport/shared/errors"
)

// RateLimitConfig is a token bucket per client
type RateLimitConfig struct {
	RatePerSecond float64
	Burst         int
}

// RateLimiter keeps one token bucket per client and evicts idle ones
type RateLimiter struct {
	mu              sync.Mutex
	clients         map[string]*clientInfo
	config          RateLimitConfig
	paths           map[string]RateLimitConfig
	cleanupInterval time.Duration
	done            chan struct{}
	closed          bool
}

type clientInfo struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter with a default bucket and optional per-path overrides
func NewRateLimiter(config RateLimitConfig, paths map[string]RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		clients:         make(map[string]*clientInfo),
		config:          config,
		paths:           paths,
		cleanupInterval: 5 * time.Minute,
		done:            make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// SponsorshipPathLimits tightens the endpoints that spend sponsor funds
func SponsorshipPathLimits(base RateLimitConfig) map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		"/api/sponsorship/sponsor": base,
		"/api/sponsorship/execute": base,
		"/api/sponsorship/status":  {RatePerSecond: base.RatePerSecond * 10, Burst: base.Burst * 10},
	}
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientID(r), r.URL.Path) {
			sharedErrors.WriteHTTP(w, sharedErrors.RateLimited())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID prefers the proxy-supplied address over the socket peer
func clientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) allow(client, path string) bool {
	config := rl.config
	key := client
	if pathConfig, ok := rl.paths[path]; ok {
		config = pathConfig
		key = client + "|" + path
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	info, exists := rl.clients[key]
	if !exists {
		info = &clientInfo{limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst)}
		rl.clients[key] = info
	}
	info.lastSeen = time.Now()
	return info.limiter.Allow()
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			threshold := time.Now().Add(-rl.cleanupInterval)
			rl.mu.Lock()
			for key, info := range rl.clients {
				if info.lastSeen.Before(threshold) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.done:
			return
		}
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.closed {
		close(rl.done)
		rl.closed = true
		rl.clients = make(map[string]*clientInfo)
	}
}
