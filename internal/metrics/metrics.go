package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event Bus Metrics
var (
	// EventsPublished tracks events published to the bus by channel
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_published_total",
			Help: "Events published to the shared bus by channel",
		},
		[]string{"channel"},
	)

	// PublishFailures tracks publish attempts swallowed because the bus was unreachable
	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_publish_failures_total",
			Help: "Publish attempts that failed and were swallowed, by channel",
		},
		[]string{"channel"},
	)

	// EventsReceived tracks bus messages consumed by the dispatcher by channel
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_events_received_total",
			Help: "Bus messages consumed by the dispatcher by channel",
		},
		[]string{"channel"},
	)

	// MalformedPayloads tracks bus messages dropped because they failed to decode
	MalformedPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_malformed_payloads_total",
			Help: "Bus messages dropped because the payload failed to decode, by channel",
		},
		[]string{"channel"},
	)
)

// Dispatcher Metrics
var (
	// EventsDelivered tracks events written to local connections by channel
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_events_delivered_total",
			Help: "Events delivered to local connections by channel",
		},
		[]string{"channel"},
	)

	// DeliveryFailures tracks delivery attempts swallowed on a closed or slow connection
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_delivery_failures_total",
			Help: "Delivery attempts swallowed on a closed or slow connection, by channel",
		},
		[]string{"channel"},
	)
)

// Signaling Metrics
var (
	// SignalsRelayed tracks call-signaling messages by kind and outcome
	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_relayed_total",
			Help: "Call-signaling messages relayed by kind and outcome (delivered/dropped)",
		},
		[]string{"kind", "outcome"},
	)
)

// Connection Metrics
var (
	// ActiveConnections tracks currently registered local connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_connections",
			Help: "Currently registered local WebSocket connections",
		},
	)

	// SlowClientsDropped tracks connections dropped because their send buffer filled
	SlowClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_dropped_total",
			Help: "Connections dropped because their send buffer filled",
		},
	)

	// HeartbeatsSent tracks liveness probes written to clients
	HeartbeatsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_probes_sent_total",
			Help: "Liveness probes written to client connections",
		},
	)

	// HeartbeatTimersActive tracks currently running heartbeat timers
	HeartbeatTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "heartbeat_timers_active",
			Help: "Currently running per-connection heartbeat timers",
		},
	)
)

// Presence Metrics
var (
	// PresenceCacheHits tracks local presence cache hits
	PresenceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_cache_hits_total",
			Help: "Presence lookups served from the local cache",
		},
	)

	// PresenceCacheMisses tracks local presence cache misses
	PresenceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_cache_misses_total",
			Help: "Presence lookups that fell through to the store",
		},
	)

	// PresenceFailOpen tracks presence reads answered "offline" because the store was unreachable
	PresenceFailOpen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_fail_open_total",
			Help: "Presence reads answered offline because the store was unreachable",
		},
	)
)

// Redis Operations Metrics
var (
	// RedisOpsTotal tracks total Redis operations by operation type and status
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total Redis operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis operation latency in seconds
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors tracks Redis connection errors
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Total Redis connection errors",
		},
	)

	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
