// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

const accountColumns = `id, owner_ref, balance, is_active, created_at, updated_at, deactivated_at`

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account using the provided DBExecutor.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (owner_ref, balance, is_active, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query, account.OwnerRef, account.Balance, account.IsActive, account.CreatedAt, account.UpdatedAt).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	return r.get(ctx, q, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetAccountByIDForUpdate retrieves an account and holds its row lock until the transaction ends.
func (r *AccountRepository) GetAccountByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	return r.get(ctx, q, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (r *AccountRepository) get(ctx context.Context, q repository.DBExecutor, query string, id int64) (*domain.Account, error) {
	var account domain.Account
	if err := q.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %d: %w", id, err)
	}
	return &account, nil
}

// SetAccountBalance overwrites the balance of an account.
func (r *AccountRepository) SetAccountBalance(ctx context.Context, q repository.DBExecutor, id int64, balance decimal.Decimal, at time.Time) error {
	query := `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, balance, at, id)
	if err != nil {
		if isCheckViolation(err) {
			return util.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to set balance for account %d: %w", id, err)
	}
	return requireOneRow(result, util.ErrNotFound)
}

// DeactivateAccount soft-deactivates an account.
func (r *AccountRepository) DeactivateAccount(ctx context.Context, q repository.DBExecutor, id int64, at time.Time) error {
	query := `UPDATE accounts SET is_active = FALSE, deactivated_at = $1, updated_at = $1 WHERE id = $2 AND is_active`
	result, err := q.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate account %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deactivating account %d: %w", id, err)
	}
	if rows == 0 {
		// Already inactive is fine; a missing account is not.
		if _, err := r.GetAccountByID(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// requireOneRow turns a zero-row update into ifNone.
func requireOneRow(result sql.Result, ifNone error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ifNone
	}
	return nil
}
