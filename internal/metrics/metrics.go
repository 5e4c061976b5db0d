package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_webhook_events_total",
		Help: "Webhook deliveries received, labeled by provider and outcome",
	}, []string{"provider", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "path"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "HTTP requests processed, labeled by status code",
	}, []string{"method", "path", "status"})
)

// Webhook outcome label values.
const (
	OutcomeProcessed  = "processed"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
	OutcomeUnroutable = "unroutable"
)
