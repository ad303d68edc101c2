// Package metrics declares the Prometheus instrumentation for the realtime
// hub. Every series is declared here and named
// namespace_subsystem_name.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedUsers tracks the current number of live control-channel
	// sessions (Gauge - current state).
	ConnectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "thiscrow",
		Subsystem: "presence",
		Name:      "connected_users",
		Help:      "Current number of users with a live control-channel session",
	})

	// ActiveRooms tracks the number of Voice Rooms currently present in
	// the Room Registry (Gauge - current state).
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "thiscrow",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active voice rooms",
	})

	// RoomMembers tracks the number of PeerSlots per room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "thiscrow",
		Subsystem: "room",
		Name:      "members",
		Help:      "Number of members currently attached to a voice room",
	}, []string{"room_id"})

	// MessagesDispatched counts Message dispatch outcomes by class and
	// authorization result.
	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "control_session",
		Name:      "messages_total",
		Help:      "Total control-channel messages processed",
	}, []string{"class", "outcome"})

	// EventsHandled counts Event handling outcomes by kind.
	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "control_session",
		Name:      "events_total",
		Help:      "Total control-channel events processed",
	}, []string{"kind"})

	// RelayRTPPackets counts RTP packets forwarded by Relay Tasks.
	RelayRTPPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "sfu",
		Name:      "rtp_packets_total",
		Help:      "Total RTP packets forwarded by relay tasks",
	}, []string{"outcome"})

	// RelayTargetsRemoved counts targets dropped from a relay fan-out due
	// to write failures.
	RelayTargetsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "sfu",
		Name:      "relay_targets_removed_total",
		Help:      "Total targets removed from a relay fan-out after a write failure",
	}, []string{"reason"})

	// RenegotiationsSent counts server-initiated renegotiation offers.
	RenegotiationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "sfu",
		Name:      "renegotiations_total",
		Help:      "Total server-initiated renegotiation offers sent",
	})

	// CircuitBreakerState tracks the current state of a named circuit
	// breaker (0: Closed, 1: Open, 2: Half-Open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "thiscrow",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests counts requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thiscrow",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ConnectedUsers.Inc()
}

func DecConnection() {
	ConnectedUsers.Dec()
}
