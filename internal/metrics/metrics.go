// Package metrics exposes the prometheus collectors of the CSMS core.
// ActiveConnections (wstransport), EventsPublished (the Kafka publisher)
// and the two session-registry counters are updated by code; the other
// collectors are registered and exported, but nothing updates them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of live station WebSocket sessions.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csms_active_connections",
		Help: "Number of active station WebSocket sessions.",
	})

	// MessagesReceived counts inbound frames, labeled by OCPP version and action.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_messages_received_total",
		Help: "Total number of inbound OCPP messages received from stations.",
	}, []string{"ocpp_version", "action"})

	// EventsPublished counts domain events published to the event bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_events_published_total",
		Help: "Total number of domain events published to the event bus.",
	}, []string{"event_type"})

	// CommandsConsumed counts operator commands accepted by the command engine.
	CommandsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_commands_consumed_total",
		Help: "Total number of outbound commands dispatched to stations.",
	}, []string{"action"})

	// MessageProcessingDuration observes inbound-handler latency, labeled by action.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "csms_message_processing_duration_seconds",
		Help:    "Histogram of inbound message handler processing times.",
		Buckets: prometheus.LinearBuckets(0.01, 0.01, 10),
	}, []string{"action"})

	// SessionRegistryEvictions counts sessions evicted by a reconnecting station.
	SessionRegistryEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_session_evictions_total",
		Help: "Total number of sessions evicted by a newer connection for the same station.",
	})

	// SessionRegistryDebounces counts reconnects rejected by the debounce window.
	SessionRegistryDebounces = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_session_debounces_total",
		Help: "Total number of reconnect attempts rejected by the debounce window.",
	})

	// PendingCommandTimeouts counts outbound commands that expired unanswered.
	PendingCommandTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csms_pending_command_timeouts_total",
		Help: "Total number of outbound commands that timed out waiting for a response.",
	})

	// TransactionsActive tracks the number of in-flight charging transactions.
	TransactionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "csms_transactions_active",
		Help: "Number of currently active charging transactions.",
	})

	// BillingCalculated counts completed billing calculations, labeled by tariff type.
	BillingCalculated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_billing_calculated_total",
		Help: "Total number of transactions billed, labeled by tariff type.",
	}, []string{"tariff_type"})

	// SweeperRuns counts completed liveness/reservation sweep passes.
	SweeperRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csms_sweeper_runs_total",
		Help: "Total number of completed sweeper passes, labeled by sweeper name.",
	}, []string{"sweeper"})
)
