// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"wallet-ledger/internal/domain"
)

// TransactionFilter narrows an account history query. Zero values mean unbounded.
type TransactionFilter struct {
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// TransactionRepository defines the interface for ledger entry operations.
// Entries are append-only: nothing here rewrites amount, type or balances.
type TransactionRepository interface {
	// CreateTransaction appends a transaction. Returns util.ErrDuplicateCode when the code is taken.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionByID retrieves a transaction by its ID.
	GetTransactionByID(ctx context.Context, q DBExecutor, id int64) (*domain.Transaction, error)
	// GetTransactionByCode retrieves a transaction by its unique code.
	GetTransactionByCode(ctx context.Context, q DBExecutor, code string) (*domain.Transaction, error)
	// ListTransactionsByAccount returns a page of an account's history, newest first, and the total count.
	ListTransactionsByAccount(ctx context.Context, q DBExecutor, accountID int64, filter TransactionFilter) ([]domain.Transaction, int64, error)
	// GetLatestSuccessfulTransaction returns the most recent SUCCESS entry of an account.
	GetLatestSuccessfulTransaction(ctx context.Context, q DBExecutor, accountID int64) (*domain.Transaction, error)
	// UpdateTransactionStatus moves a transaction from one status to another.
	// Returns util.ErrStatusConflict when the row is not in from.
	UpdateTransactionStatus(ctx context.Context, q DBExecutor, id int64, from, to domain.TransactionStatus, processedAt time.Time) error
	// ListTransactionsByStatus lists entries in status created before olderThan, oldest first.
	ListTransactionsByStatus(ctx context.Context, q DBExecutor, status domain.TransactionStatus, olderThan time.Time, limit int) ([]domain.Transaction, error)
}
