package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Login metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zklogin_login_attempts_total",
			Help: "Total number of login steps by stage and outcome",
		},
		[]string{"stage", "status"},
	)

	NonceVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zklogin_nonce_verified_total",
			Help: "Total number of token nonce checks",
		},
		[]string{"status"},
	)

	// Proof metrics
	ProofRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zklogin_proof_requests_total",
			Help: "Total number of proving service requests",
		},
		[]string{"status"},
	)

	ProofDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zklogin_proof_duration_seconds",
			Help:    "Duration of proving service requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)

	// Signing metrics
	Signatures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zklogin_signatures_total",
			Help: "Total number of composite signatures produced or refused",
		},
		[]string{"status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zklogin_sessions_active",
			Help: "Whether a valid session is currently stored",
		},
	)
)

// RecordLoginStep records a login step outcome
func RecordLoginStep(stage, status string) {
	LoginAttempts.WithLabelValues(stage, status).Inc()
}

// RecordNonceCheck records a nonce comparison
func RecordNonceCheck(matched bool) {
	status := "match"
	if !matched {
		status = "mismatch"
	}
	NonceVerified.WithLabelValues(status).Inc()
}

// RecordProof records a proving service call
func RecordProof(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProofRequests.WithLabelValues(status).Inc()
	ProofDuration.Observe(duration.Seconds())
}

// RecordSignature records a signing outcome (signed, expired, failed)
func RecordSignature(status string) {
	Signatures.WithLabelValues(status).Inc()
}

// SetSessionActive flips the session gauge
func SetSessionActive(active bool) {
	if active {
		SessionsActive.Set(1)
		return
	}
	SessionsActive.Set(0)
}
