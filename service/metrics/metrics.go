package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. A nil
// *Metrics disables recording everywhere.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Sweep Metrics
	sweepsTotal        *prometheus.CounterVec
	sweepSendersPerTx  *prometheus.HistogramVec
	sendersDroppedTotal *prometheus.CounterVec
	sweepLamportsTotal *prometheus.CounterVec

	// Transfer Metrics
	transfersTotal *prometheus.CounterVec

	// Confirmation Metrics
	confirmDuration *prometheus.HistogramVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Sweep Metrics
		sweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeps_total",
				Help: "Total number of dust sweeps by terminal status",
			},
			[]string{"status"},
		),
		sweepSendersPerTx: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweep_senders_per_transaction",
				Help:    "Number of sender accounts consolidated per sweep transaction",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
			[]string{},
		),
		sendersDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_senders_dropped_total",
				Help: "Total number of sender accounts dropped before submission, by reason",
			},
			[]string{"reason"},
		),
		sweepLamportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_lamports_total",
				Help: "Total lamports moved by finalized sweeps",
			},
			[]string{},
		),

		// Transfer Metrics
		transfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_total",
				Help: "Total number of single transfers by asset kind and terminal status",
			},
			[]string{"asset", "status"},
		),

		// Confirmation Metrics
		confirmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_duration_seconds",
				Help:    "Time from submission to terminal confirmation outcome",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Sweep metric helpers

// RecordSweep records a completed sweep attempt with its terminal status.
func (m *Metrics) RecordSweep(status string, senders int, lamports uint64) {
	if m == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(status).Inc()
	m.sweepSendersPerTx.WithLabelValues().Observe(float64(senders))
	if status == "finalized" {
		m.sweepLamportsTotal.WithLabelValues().Add(float64(lamports))
	}
}

// RecordSendersDropped records sender accounts dropped before submission.
func (m *Metrics) RecordSendersDropped(reason string, count int) {
	if m == nil {
		return
	}
	m.sendersDroppedTotal.WithLabelValues(reason).Add(float64(count))
}

// Transfer metric helpers

// RecordTransfer records a completed single-transfer attempt.
func (m *Metrics) RecordTransfer(asset, status string) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(asset, status).Inc()
}

// Confirmation metric helpers

// RecordConfirmation records the duration of a confirmation wait.
func (m *Metrics) RecordConfirmation(status string, duration float64) {
	if m == nil {
		return
	}
	m.confirmDuration.WithLabelValues(status).Observe(duration)
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}
