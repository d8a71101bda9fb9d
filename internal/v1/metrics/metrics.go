// Package metrics declares the Prometheus metrics for the signaling server.
//
// Naming convention: namespace_subsystem_name
//   - namespace: signalhub (application-level grouping)
//   - subsystem: session, websocket, signal, chat, stream, rate_limit, redis,
//     circuit_breaker (feature-level grouping)
//   - name: specific metric (sessions_active, messages_published_total, etc.)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks current open client connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalhub",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveSessions tracks the current number of live sessions (C1).
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalhub",
		Subsystem: "session",
		Name:      "sessions_active",
		Help:      "Current number of active sessions",
	})

	// SessionMembers tracks the current member count per session (C3).
	SessionMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signalhub",
		Subsystem: "session",
		Name:      "members_count",
		Help:      "Number of members in each session",
	}, []string{"session_id"})

	// SignalsRouted tracks signals relayed through the signal router (C4).
	SignalsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "signal",
		Name:      "routed_total",
		Help:      "Total signals routed between members",
	}, []string{"kind", "status"})

	// ChatMessagesPublished tracks chat fan-out volume (C5).
	ChatMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "chat",
		Name:      "messages_published_total",
		Help:      "Total chat messages published to a session's broadcast channel",
	}, []string{"status"})

	// BroadcastLagEvents counts publishes dropped for a subscriber whose
	// bounded backlog was full (C5); the subscriber stays subscribed.
	BroadcastLagEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "chat",
		Name:      "broadcast_lag_total",
		Help:      "Total publishes dropped for subscribers whose broadcast backlog was full",
	}, []string{"channel"})

	// StreamsActive tracks open server-push streams by kind (C6).
	StreamsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signalhub",
		Subsystem: "stream",
		Name:      "active",
		Help:      "Current number of open server-push streams, by kind",
	}, []string{"kind"})

	// WebsocketEvents tracks WS frames processed by event type and outcome.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks time spent handling one WS frame.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalhub",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// CircuitBreakerState mirrors gobreaker.State (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signalhub",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Half-Open, 2: Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by an open breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks operations rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of operations that exceeded the rate limit",
	}, []string{"op"})

	// RateLimitRequests tracks operations checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of operations checked against the rate limiter",
	}, []string{"op"})

	// RedisOperationsTotal tracks bus publish/subscribe call outcomes.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalhub",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks bus publish/subscribe call latency.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalhub",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
