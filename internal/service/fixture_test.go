// internal/service/fixture_test.go
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-ledger/internal/catalog"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/fraud"
	"wallet-ledger/internal/gateway"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/repository/memory"
	"wallet-ledger/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ledgerOptions overrides parts of the in-memory ledger built by newTestLedger.
type ledgerOptions struct {
	engine  EngineConfig
	scorer  fraud.Scorer
	mode    TransferMode
	gateway gateway.Client
	newCode domain.CodeGenerator
	stock   map[int64]int64
}

type testLedger struct {
	store        *memory.Store
	reservations *memory.ReservationStore
	catalog      *catalog.StaticCatalog
	clock        *fakeClock
	metrics      *countingCollector

	mutator   *BalanceMutator
	engine    *TransactionEngine
	transfers *TransferCoordinator
	topUps    *TopUpService
	reserve   *ReservationManager
	purchases *PurchaseService
	accounts  *AccountService
}

func newTestLedger(t *testing.T, opts ledgerOptions) *testLedger {
	t.Helper()
	logger := discardLogger()
	store := memory.NewStore()
	collector := &countingCollector{}

	mutator := NewBalanceMutator(nil, store, NewAccountLocks(0), memory.BeginTx, db.CommitTx, db.RollbackTx)
	engine := NewTransactionEngine(store, store, store, mutator, opts.scorer, opts.newCode, opts.engine, collector, logger)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	reservations := memory.NewReservationStore()
	stockCatalog := catalog.NewStaticCatalog(opts.stock)
	reserve := NewReservationManager(reservations, stockCatalog, time.Minute, clock.Now, collector, logger)

	return &testLedger{
		store:        store,
		reservations: reservations,
		catalog:      stockCatalog,
		clock:        clock,
		metrics:      collector,
		mutator:      mutator,
		engine:       engine,
		transfers:    NewTransferCoordinator(store, store, store, engine, opts.mode, opts.newCode, 0, collector, logger),
		topUps:       NewTopUpService(store, store, store, engine, opts.gateway, opts.newCode, 0, collector, logger),
		reserve:      reserve,
		purchases:    NewPurchaseService(reserve, engine, logger),
		accounts:     NewAccountService(store, store, mutator, logger),
	}
}

// openFunded opens an account and credits it with a TOPUP_MANUAL entry.
func (l *testLedger) openFunded(t *testing.T, owner string, balance int64) *domain.Account {
	t.Helper()
	ctx := context.Background()
	account, err := l.accounts.OpenAccount(ctx, owner)
	require.NoError(t, err)
	if balance > 0 {
		_, err = l.engine.Record(ctx, RecordRequest{
			AccountID: account.ID,
			Type:      domain.TransactionTypeTopUpManual,
			Amount:    decimal.NewFromInt(balance),
		})
		require.NoError(t, err)
	}
	return account
}

func (l *testLedger) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := l.accounts.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (l *testLedger) history(t *testing.T, accountID int64) []domain.Transaction {
	t.Helper()
	txns, _, err := l.engine.History(context.Background(), accountID, repository.TransactionFilter{Limit: 1000})
	require.NoError(t, err)
	return txns
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingCollector counts the events tests assert on.
type countingCollector struct {
	metrics.NoOpCollector
	reconciliations atomic.Int64
	swept           atomic.Int64
	notifications   sync.Map
}

func (c *countingCollector) RecordReconciliationRequired() { c.reconciliations.Add(1) }

func (c *countingCollector) RecordSweep(expired int64, _ time.Duration) { c.swept.Add(expired) }

func (c *countingCollector) RecordGatewayNotification(status, outcome string) {
	v, _ := c.notifications.LoadOrStore(status+"/"+outcome, new(atomic.Int64))
	v.(*atomic.Int64).Add(1)
}

func (c *countingCollector) notificationCount(status, outcome string) int64 {
	v, ok := c.notifications.Load(status + "/" + outcome)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// stubScorer returns a fixed action or error.
type stubScorer struct {
	action fraud.Action
	err    error
	calls  atomic.Int64
}

func (s *stubScorer) Score(context.Context, fraud.Assessment) (fraud.Action, error) {
	s.calls.Add(1)
	return s.action, s.err
}

// sequenceCodes hands out codes in order, repeating the last one.
func sequenceCodes(codes ...string) domain.CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func(prefix string) string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return code
	}
}
