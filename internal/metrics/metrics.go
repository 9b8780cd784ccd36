// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts admin API requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the admin API.",
		},
		[]string{"path", "method", "code"},
	)

	// ConnectionsTotal counts accepted connections by admission outcome (assigned/rejected).
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_connections_total",
			Help: "Total number of accepted connections by admission outcome.",
		},
		[]string{"outcome"},
	)

	// AcceptErrorsTotal counts failed accept calls.
	AcceptErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo_accept_errors_total",
			Help: "Total number of failed accept calls.",
		},
	)

	// ExchangesTotal counts finished exchanges by status.
	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "echo_exchanges_total",
			Help: "Total number of finished echo exchanges.",
		},
		[]string{"status"},
	)

	// BytesEchoedTotal counts payload bytes written back to peers.
	BytesEchoedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "echo_bytes_echoed_total",
			Help: "Total number of bytes echoed back to clients.",
		},
	)

	// ExchangeDuration observes how long each exchange held its slot.
	ExchangeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "echo_exchange_duration_seconds",
			Help:    "Time between slot claim and release for a single exchange.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SlotsInUse is the number of claimed worker slots.
	SlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echo_slots_in_use",
			Help: "Number of worker slots currently claimed.",
		},
	)

	// SlotsCapacity is the fixed size of the worker slot table.
	SlotsCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "echo_slots_capacity",
			Help: "Fixed number of worker slots.",
		},
	)
)

const (
	OutcomeAssigned = "assigned"
	OutcomeRejected = "rejected"
)
