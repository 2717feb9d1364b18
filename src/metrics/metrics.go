package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reason labels used by the broadcast hub.
const (
	DropReasonBackpressure = "backpressure"
	DropReasonQueueFull    = "queue_full"
	DropReasonWriteError   = "write_error"
	DropReasonClosed       = "closed"
)

// Ingestion Metrics
var (
	// EventsIngested tracks accepted sentiment pulse events
	EventsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseops_events_ingested_total",
			Help: "Total sentiment pulse events accepted at the ingestion boundary",
		},
	)

	// EventsRejected tracks rejected ingestion requests by cause
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseops_events_rejected_total",
			Help: "Total ingestion requests rejected by cause (malformed/missing_composite/out_of_range/rate_limited)",
		},
		[]string{"cause"},
	)

	// KPIWindowSize tracks the current number of retained samples
	KPIWindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulseops_kpi_window_samples",
			Help: "Current number of samples retained in the KPI window",
		},
	)
)

// Broadcast Hub Metrics
var (
	// HubConnectedClients tracks current live subscribers
	HubConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulseops_hub_connected_clients",
			Help: "Current number of connected WebSocket subscribers",
		},
	)

	// HubMessagesSent tracks successful per-subscriber deliveries
	HubMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseops_hub_messages_sent_total",
			Help: "Total per-subscriber deliveries handed to the transport",
		},
	)

	// HubMessagesDropped tracks skipped or failed deliveries by reason
	HubMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseops_hub_messages_dropped_total",
			Help: "Total per-subscriber deliveries dropped by reason (backpressure/queue_full/write_error/closed)",
		},
		[]string{"reason"},
	)

	// HubConnectionsRejected tracks refused upgrade attempts by reason
	HubConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseops_hub_connections_rejected_total",
			Help: "Total WebSocket connections rejected by reason (capacity/closed/upgrade_error)",
		},
		[]string{"reason"},
	)
)

// Auth Metrics
var (
	// AuthFailures tracks rejected requests by cause
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseops_auth_failures_total",
			Help: "Total rejected requests by cause (missing_token/invalid_token/forbidden/unavailable)",
		},
		[]string{"cause"},
	)

	// IntrospectionDuration tracks token introspection round-trip latency
	IntrospectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pulseops_introspection_duration_seconds",
			Help:    "Token introspection round-trip duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Storage Metrics
var (
	// AllocationsCreated tracks booked allocations
	AllocationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseops_allocations_created_total",
			Help: "Total allocations booked through the API",
		},
	)

	// StorageErrors tracks best-effort persistence failures by operation
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseops_storage_errors_total",
			Help: "Total storage errors by operation",
		},
		[]string{"operation"},
	)
)
