// internal/resilience/breaker_test.go
package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateRecorder struct {
	metrics.NoOpCollector
	mu     sync.Mutex
	states []metrics.CircuitState
}

func (r *stateRecorder) RecordCircuitState(_ string, state metrics.CircuitState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func TestBreakerWrapsFailuresAsExternalServiceError(t *testing.T) {
	b := NewBreaker("gateway", DefaultConfig(), nil, util.NewDiscardLogger())

	_, err := b.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return nil, errors.New("connection refused")
	})

	var ext *util.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "gateway", ext.Service)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	recorder := &stateRecorder{}
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 2
	cfg.OpenTimeout = time.Minute
	b := NewBreaker("fraud", cfg, recorder, util.NewDiscardLogger())

	fail := func(context.Context) (interface{}, error) { return nil, errors.New("boom") }
	_, _ = b.Execute(context.Background(), fail)
	_, _ = b.Execute(context.Background(), fail)

	called := false
	_, err := b.Execute(context.Background(), func(context.Context) (interface{}, error) {
		called = true
		return "ok", nil
	})
	assert.False(t, called, "open breaker must not call through")
	assert.True(t, util.IsExternalServiceError(err))
	assert.Equal(t, "open", b.State())
	assert.Contains(t, recorder.states, metrics.CircuitOpen)
}

func TestBreakerTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	b := NewBreaker("gateway", cfg, nil, util.NewDiscardLogger())

	_, err := b.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.True(t, util.IsExternalServiceError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBreakerPermanentErrorPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsecutiveFailures = 1
	b := NewBreaker("gateway", cfg, nil, util.NewDiscardLogger())

	rejected := errors.New("amount below minimum")
	for i := 0; i < 3; i++ {
		_, err := b.Execute(context.Background(), func(context.Context) (interface{}, error) {
			return nil, &PermanentError{Err: rejected}
		})
		assert.ErrorIs(t, err, rejected)
		assert.False(t, util.IsExternalServiceError(err))
	}
	assert.Equal(t, "closed", b.State())
}
