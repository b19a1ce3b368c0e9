// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
)

const transactionColumns = `id, code, account_id, type, amount, balance_before, balance_after, status,
       description, reference_id, metadata, created_at, processed_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new ledger entry. A code collision inserts
// nothing and leaves the surrounding transaction usable.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (code, account_id, type, amount, balance_before, balance_after, status,
                                        description, reference_id, metadata, created_at, processed_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
              ON CONFLICT (code) DO NOTHING
              RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.Code,
		transaction.AccountID,
		transaction.Type,
		transaction.Amount,
		transaction.BalanceBefore,
		transaction.BalanceAfter,
		transaction.Status,
		transaction.Description,
		transaction.ReferenceID,
		transaction.Metadata,
		transaction.CreatedAt,
		transaction.ProcessedAt,
	).Scan(&transaction.ID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return util.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByID retrieves a transaction by its ID.
func (r *TransactionRepository) GetTransactionByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := q.GetContext(ctx, &txn, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID %d: %w", id, err)
	}
	return &txn, nil
}

// GetTransactionByCode retrieves a transaction by its code.
func (r *TransactionRepository) GetTransactionByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := q.GetContext(ctx, &txn, `SELECT `+transactionColumns+` FROM transactions WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by code %s: %w", code, err)
	}
	return &txn, nil
}

// ListTransactionsByAccount retrieves a page of an account's transactions and the total count.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) ListTransactionsByAccount(ctx context.Context, q repository.DBExecutor, accountID int64, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	where := []string{"account_id = $1"}
	args := []interface{}{accountID}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var totalCount int64
	if err := q.GetContext(ctx, &totalCount, `SELECT COUNT(*) FROM transactions WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for account %d: %w", accountID, err)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + cond + ` ORDER BY created_at DESC, id DESC`
	pageArgs := args
	if filter.Limit > 0 {
		pageArgs = append(pageArgs, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(pageArgs))
	}
	if filter.Offset > 0 {
		pageArgs = append(pageArgs, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(pageArgs))
	}

	transactions := []domain.Transaction{}
	if err := q.SelectContext(ctx, &transactions, query, pageArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for account %d: %w", accountID, err)
	}
	return transactions, totalCount, nil
}

// GetLatestSuccessfulTransaction returns the most recent SUCCESS entry of an account.
func (r *TransactionRepository) GetLatestSuccessfulTransaction(ctx context.Context, q repository.DBExecutor, accountID int64) (*domain.Transaction, error) {
	var txn domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions
              WHERE account_id = $1 AND status = $2
              ORDER BY id DESC LIMIT 1`
	if err := q.GetContext(ctx, &txn, query, accountID, domain.TransactionStatusSuccess); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest transaction for account %d: %w", accountID, err)
	}
	return &txn, nil
}

// UpdateTransactionStatus moves a transaction from one status to another.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, q repository.DBExecutor, id int64, from, to domain.TransactionStatus, processedAt time.Time) error {
	query := `UPDATE transactions SET status = $1, processed_at = $2 WHERE id = $3 AND status = $4`
	result, err := q.ExecContext(ctx, query, to, processedAt, id, from)
	if err != nil {
		return fmt.Errorf("failed to update status of transaction %d: %w", id, err)
	}
	if err := requireOneRow(result, util.ErrStatusConflict); err != nil {
		if errors.Is(err, util.ErrStatusConflict) {
			if _, getErr := r.GetTransactionByID(ctx, q, id); getErr != nil {
				return getErr
			}
		}
		return err
	}
	return nil
}

// ListTransactionsByStatus lists entries in status created before olderThan, oldest first.
func (r *TransactionRepository) ListTransactionsByStatus(ctx context.Context, q repository.DBExecutor, status domain.TransactionStatus, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	transactions := []domain.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions
              WHERE status = $1 AND created_at < $2
              ORDER BY id ASC LIMIT $3`
	if err := q.SelectContext(ctx, &transactions, query, status, olderThan, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list %s transactions: %w", status, err)
	}
	return transactions, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
