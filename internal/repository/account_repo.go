// internal/repository/account_repo.go
package repository

import (
	"context"
	"time"

	"wallet-ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount adds a new account using the provided DBExecutor.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID retrieves an account by its ID.
	GetAccountByID(ctx context.Context, q DBExecutor, id int64) (*domain.Account, error)
	// GetAccountByIDForUpdate retrieves an account and locks its row until the surrounding transaction ends.
	GetAccountByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Account, error)
	// SetAccountBalance overwrites the stored balance. Only the balance mutator calls it.
	SetAccountBalance(ctx context.Context, q DBExecutor, id int64, balance decimal.Decimal, at time.Time) error
	// DeactivateAccount soft-deactivates an account. Deactivating an inactive account is a no-op.
	DeactivateAccount(ctx context.Context, q DBExecutor, id int64, at time.Time) error
}
