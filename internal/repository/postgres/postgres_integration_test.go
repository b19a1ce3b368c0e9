// internal/repository/postgres/postgres_integration_test.go
package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
	"wallet-ledger/pkg/db"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_DSN and applies the schema. Tests
// skip when no database is configured or reachable.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping PostgreSQL integration tests")
	}
	database, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		t.Skipf("PostgreSQL not reachable, skipping: %v", err)
	}
	require.NoError(t, ApplySchema(context.Background(), database))
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestPostgresTransactionRepository(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	accounts := NewAccountRepository()
	transactions := NewTransactionRepository()

	account := domain.NewAccount("pg-owner")
	require.NoError(t, accounts.CreateAccount(ctx, database, account))

	tx, err := db.BeginTx(ctx, database)
	require.NoError(t, err)
	defer db.RollbackTx(tx)
	q := tx.(repository.DBExecutor)

	locked, err := accounts.GetAccountByIDForUpdate(ctx, q, account.ID)
	require.NoError(t, err)
	assert.True(t, locked.Balance.IsZero())

	amount := decimal.NewFromInt(1500)
	txn := domain.NewTransaction(account.ID, domain.TransactionTypeTopUpManual, amount, decimal.Zero, amount, nil, nil, map[string]any{"source": "test"})
	txn.Code = domain.GenerateCode(domain.TransactionCodePrefix)
	require.NoError(t, transactions.CreateTransaction(ctx, q, txn))
	require.NoError(t, accounts.SetAccountBalance(ctx, q, account.ID, amount, time.Now().UTC()))

	dup := *txn
	assert.ErrorIs(t, transactions.CreateTransaction(ctx, q, &dup), util.ErrDuplicateCode)

	// the transaction is still usable after a code collision
	require.NoError(t, db.CommitTx(tx))

	got, err := transactions.GetTransactionByCode(ctx, database, txn.Code)
	require.NoError(t, err)
	assert.True(t, got.BalanceAfter.Equal(amount))
	assert.Equal(t, "test", got.DecodeMetadata()["source"])

	latest, err := transactions.GetLatestSuccessfulTransaction(ctx, database, account.ID)
	require.NoError(t, err)
	assert.Equal(t, txn.ID, latest.ID)

	page, total, err := transactions.ListTransactionsByAccount(ctx, database, account.ID, repository.TransactionFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, page, 1)

	err = transactions.UpdateTransactionStatus(ctx, database, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusCancelled, time.Now())
	assert.ErrorIs(t, err, util.ErrStatusConflict)

	err = accounts.SetAccountBalance(ctx, database, account.ID, decimal.NewFromInt(-1), time.Now())
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)
}

func TestPostgresReservationRepositoryNeverOversells(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	reservations := NewReservationRepository(database)

	productID := time.Now().UnixNano() % 1_000_000
	now := time.Now().UTC()

	const stock = 5
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := domain.NewStockReservation(productID, 1, "holder", now, time.Minute)
			if err := reservations.Reserve(ctx, r, stock); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, stock, granted)

	swept, err := reservations.SweepExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, swept, int64(stock))

	_, err = reservations.Release(ctx, "not-a-uuid", now)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
