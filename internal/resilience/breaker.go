// internal/resilience/breaker.go
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/util"

	"github.com/sony/gobreaker"
)

// Config configures a Breaker.
type Config struct {
	// Timeout bounds every call. Zero disables it.
	Timeout time.Duration
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset. Zero never resets.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:             5 * time.Second,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker guards calls to an external service with a timeout and a circuit
// breaker. Every failure it returns is an *util.ExternalServiceError, which
// callers treat as "outcome unknown, leave the record PENDING".
type Breaker struct {
	service string
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewBreaker creates a Breaker for service reporting state changes to collector.
func NewBreaker(service string, cfg Config, collector metrics.Collector, logger *slog.Logger) *Breaker {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	b := &Breaker{
		service: service,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "resilience", "service", service),
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			collector.RecordCircuitState(name, state)
		},
	})
	return b
}

// PermanentError marks a failure that is the remote side's definitive
// answer (a 4xx, a validation error). It does not count against the breaker
// and is returned unwrapped.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func isPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Execute runs fn under the timeout and the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err == nil {
		return result, nil
	}
	if isPermanent(err) {
		return nil, err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.logger.Warn("circuit breaker rejected call")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		b.logger.Warn("external call timed out", "timeout", b.timeout)
	default:
		b.logger.Error("external call failed", "error", err)
	}
	return nil, &util.ExternalServiceError{Service: b.service, Err: err}
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
