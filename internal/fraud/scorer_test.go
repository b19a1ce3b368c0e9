// internal/fraud/scorer_test.go
package fraud

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/resilience"
	"wallet-ledger/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockVelocityCounter struct {
	mock.Mock
}

func (m *MockVelocityCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

func testThresholds() Thresholds {
	return Thresholds{
		VerifyAmount: decimal.NewFromInt(1_000_000),
		ReviewAmount: decimal.NewFromInt(5_000_000),
		BlockAmount:  decimal.NewFromInt(50_000_000),
		Window:       time.Minute,
		MaxPerWindow: 3,
	}
}

func TestVelocityScorerAmountTiers(t *testing.T) {
	counter := NewMemoryVelocityCounter()
	scorer := NewVelocityScorer(counter, testThresholds())
	ctx := context.Background()

	cases := []struct {
		account int64
		amount  int64
		want    Action
	}{
		{1, 10_000, ActionAllow},
		{2, 1_000_000, ActionVerify},
		{3, 7_500_000, ActionReview},
		{4, 50_000_000, ActionBlock},
	}
	for _, tc := range cases {
		got, err := scorer.Score(ctx, Assessment{AccountID: tc.account, Type: domain.TransactionTypeTransferSend, Amount: decimal.NewFromInt(tc.amount)})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "amount %d", tc.amount)
	}
}

func TestVelocityScorerBlocksBursts(t *testing.T) {
	scorer := NewVelocityScorer(NewMemoryVelocityCounter(), testThresholds())
	ctx := context.Background()
	a := Assessment{AccountID: 9, Type: domain.TransactionTypePPOBPayment, Amount: decimal.NewFromInt(100)}

	for i := 0; i < 3; i++ {
		got, err := scorer.Score(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, ActionAllow, got)
	}
	got, err := scorer.Score(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, got)
}

func TestMemoryVelocityCounterResetsPerWindow(t *testing.T) {
	counter := NewMemoryVelocityCounter()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }

	n, _ := counter.Incr(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(1), n)
	n, _ = counter.Incr(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(2), n)

	now = now.Add(time.Minute)
	n, _ = counter.Incr(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(1), n)
}

func TestGuardedScorerMapsBackendFailure(t *testing.T) {
	counter := new(MockVelocityCounter)
	counter.On("Incr", mock.Anything, "velocity:5", time.Minute).Return(int64(0), errors.New("dial tcp: connection refused"))

	breaker := resilience.NewBreaker("fraud", resilience.DefaultConfig(), nil, util.NewDiscardLogger())
	scorer := NewGuardedScorer(NewVelocityScorer(counter, testThresholds()), breaker)

	_, err := scorer.Score(context.Background(), Assessment{AccountID: 5, Type: domain.TransactionTypeTransferSend, Amount: decimal.NewFromInt(10)})
	assert.True(t, util.IsExternalServiceError(err))
	counter.AssertExpectations(t)
}

func TestRedisVelocityCounter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	counter := NewRedisVelocityCounter(client, "test:"+uuid.NewString()+":")
	for want := int64(1); want <= 3; want++ {
		got, err := counter.Incr(context.Background(), "acct", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
