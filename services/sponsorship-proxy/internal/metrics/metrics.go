package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SponsorshipRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sponsorship_requests_total",
			Help: "Sponsorship operations by outcome",
		},
		[]string{"operation", "status"},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_quota_rejections_total",
			Help: "Sponsorships refused because the sender exhausted its quota",
		},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sponsorship_event_publish_failures_total",
			Help: "sponsorship.executed events that could not be published",
		},
	)
)

func RecordSponsorship(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SponsorshipRequests.WithLabelValues(operation, status).Inc()
}
