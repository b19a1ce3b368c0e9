// internal/metrics/prometheus.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector with Prometheus instruments.
type PrometheusCollector struct {
	transactions        *prometheus.CounterVec
	transactionLatency  *prometheus.HistogramVec
	transfers           *prometheus.CounterVec
	transferLatency     prometheus.Histogram
	reconciliations     prometheus.Counter
	reservations        *prometheus.CounterVec
	sweptReservations   prometheus.Counter
	sweepLatency        prometheus.Histogram
	circuitState        *prometheus.GaugeVec
	circuitOpens        *prometheus.CounterVec
	gatewayNotification *prometheus.CounterVec
}

var _ Collector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector whose metrics live under namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Ledger write attempts by transaction type and outcome",
			},
			[]string{"type", "outcome"},
		),
		transactionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Latency of ledger writes by transaction type",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Finished transfers by final status",
			},
			[]string{"status"},
		),
		transferLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transfer_duration_seconds",
				Help:      "End-to-end transfer latency",
				Buckets:   prometheus.DefBuckets,
			},
		),
		reconciliations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliation_required_total",
				Help:      "Transfers whose compensating refund failed",
			},
		),
		reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_total",
				Help:      "Stock reservation operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		sweptReservations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_expired_total",
				Help:      "Reservations deactivated by the expiry sweep",
			},
		),
		sweepLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reservation_sweep_duration_seconds",
				Help:      "Duration of reservation expiry sweeps",
				Buckets:   prometheus.DefBuckets,
			},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per external service (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Circuit breaker opens per external service",
			},
			[]string{"service"},
		),
		gatewayNotification: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_notifications_total",
				Help:      "Gateway payment notifications by reported status and outcome",
			},
			[]string{"status", "outcome"},
		),
	}
}

// Register registers all instruments with registry.
func (c *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.transactions,
		c.transactionLatency,
		c.transfers,
		c.transferLatency,
		c.reconciliations,
		c.reservations,
		c.sweptReservations,
		c.sweepLatency,
		c.circuitState,
		c.circuitOpens,
		c.gatewayNotification,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (c *PrometheusCollector) RecordTransaction(txType, outcome string, duration time.Duration) {
	c.transactions.WithLabelValues(txType, outcome).Inc()
	c.transactionLatency.WithLabelValues(txType).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordTransfer(status string, duration time.Duration) {
	c.transfers.WithLabelValues(status).Inc()
	c.transferLatency.Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordReconciliationRequired() {
	c.reconciliations.Inc()
}

func (c *PrometheusCollector) RecordReservation(operation, outcome string) {
	c.reservations.WithLabelValues(operation, outcome).Inc()
}

func (c *PrometheusCollector) RecordSweep(expired int64, duration time.Duration) {
	c.sweptReservations.Add(float64(expired))
	c.sweepLatency.Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordCircuitState(service string, state CircuitState) {
	c.circuitState.WithLabelValues(service).Set(float64(state))
	if state == CircuitOpen {
		c.circuitOpens.WithLabelValues(service).Inc()
	}
}

func (c *PrometheusCollector) RecordGatewayNotification(status, outcome string) {
	c.gatewayNotification.WithLabelValues(status, outcome).Inc()
}
