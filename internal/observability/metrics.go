package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Rate limiting
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by action class and outcome (allowed, rejected, error)",
		},
		[]string{"class", "outcome"},
	)

	// Session store writes
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_writes_total",
			Help: "Cart and wishlist writes by store, operation and outcome",
		},
		[]string{"store", "operation", "outcome"},
	)

	// Guest to account reconciliation
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Reconciliation runs by outcome (merged, skipped, degraded)",
		},
		[]string{"outcome"},
	)

	// Background sync
	SyncPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pushes_total",
			Help: "Full-state pushes by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	SyncPushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_push_duration_seconds",
			Help:    "Latency of full-state pushes in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Event publishing
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_events_published_total",
			Help: "Store events published by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)
