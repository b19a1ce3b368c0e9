// internal/metrics/metrics.go
package metrics

import "time"

// CircuitState mirrors the circuit breaker states reported by the resilience layer.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// Collector receives ledger events. Implementations must be safe for concurrent use.
type Collector interface {
	// RecordTransaction counts a ledger write attempt by type and outcome.
	RecordTransaction(txType, outcome string, duration time.Duration)
	// RecordTransfer counts a finished transfer by final status.
	RecordTransfer(status string, duration time.Duration)
	// RecordReconciliationRequired counts transfers left out of balance.
	RecordReconciliationRequired()
	// RecordReservation counts reserve/release outcomes.
	RecordReservation(operation, outcome string)
	// RecordSweep records how many reservations a sweep expired.
	RecordSweep(expired int64, duration time.Duration)
	// RecordCircuitState reports a breaker state change for an external service.
	RecordCircuitState(service string, state CircuitState)
	// RecordGatewayNotification counts processed gateway notifications.
	RecordGatewayNotification(status, outcome string)
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

func (NoOpCollector) RecordTransaction(string, string, time.Duration) {}
func (NoOpCollector) RecordTransfer(string, time.Duration)            {}
func (NoOpCollector) RecordReconciliationRequired()                   {}
func (NoOpCollector) RecordReservation(string, string)                {}
func (NoOpCollector) RecordSweep(int64, time.Duration)                {}
func (NoOpCollector) RecordCircuitState(string, CircuitState)         {}
func (NoOpCollector) RecordGatewayNotification(string, string)        {}

// Outcome labels shared by the services.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeIgnored  = "ignored"
)
