package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	Connections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections",
			Help: "Live relay connections",
		},
		[]string{"role"}, // "unregistered", "participant" or "admin"
	)

	PresentConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_present_conversations",
			Help: "Conversations with at least one connected participant",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_received_total",
			Help: "Inbound relay events accepted for processing",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_dropped_total",
			Help: "Inbound relay events discarded",
		},
		[]string{"reason"},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_relayed_total",
			Help: "Messages persisted and broadcast",
		},
	)

	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_send_failures_total",
			Help: "Per-recipient delivery failures",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatrelay_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .5},
		},
		[]string{"driver", "op"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_store_errors_total",
			Help: "Message store operation failures",
		},
		[]string{"driver", "op"},
	)
)
