// internal/repository/postgres/transfer_pg.go
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
)

const transferColumns = `id, code, sender_account_id, receiver_account_id, amount, status, description,
       sender_transaction_id, receiver_transaction_id, refund_transaction_id, failure_reason,
       created_at, updated_at, completed_at`

// TransferRepository implements repository.TransferRepository for PostgreSQL.
type TransferRepository struct{}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository() repository.TransferRepository {
	return &TransferRepository{}
}

// CreateTransfer inserts a PENDING transfer. A code collision returns util.ErrDuplicateCode.
func (r *TransferRepository) CreateTransfer(ctx context.Context, q repository.DBExecutor, transfer *domain.Transfer) error {
	query := `INSERT INTO transfers (code, sender_account_id, receiver_account_id, amount, status, description, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              ON CONFLICT (code) DO NOTHING
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		transfer.Code,
		transfer.SenderAccountID,
		transfer.ReceiverAccountID,
		transfer.Amount,
		transfer.Status,
		transfer.Description,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	).Scan(&transfer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return util.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

func (r *TransferRepository) GetTransferByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := q.GetContext(ctx, &transfer, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer by ID %d: %w", id, err)
	}
	return &transfer, nil
}

func (r *TransferRepository) GetTransferByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := q.GetContext(ctx, &transfer, `SELECT `+transferColumns+` FROM transfers WHERE code = $1`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer by code %s: %w", code, err)
	}
	return &transfer, nil
}

// UpdateTransfer applies update when the transfer is still in from.
func (r *TransferRepository) UpdateTransfer(ctx context.Context, q repository.DBExecutor, id int64, from domain.TransactionStatus, update domain.TransferUpdate) error {
	now := time.Now().UTC()
	var completedAt *time.Time
	if update.Status.IsTerminal() {
		completedAt = &now
	}
	query := `UPDATE transfers SET
                  status = $1,
                  sender_transaction_id = COALESCE($2, sender_transaction_id),
                  receiver_transaction_id = COALESCE($3, receiver_transaction_id),
                  refund_transaction_id = COALESCE($4, refund_transaction_id),
                  failure_reason = COALESCE($5, failure_reason),
                  completed_at = COALESCE($6, completed_at),
                  updated_at = $7
              WHERE id = $8 AND status = $9`
	result, err := q.ExecContext(ctx, query,
		update.Status,
		update.SenderTransactionID,
		update.ReceiverTransactionID,
		update.RefundTransactionID,
		update.FailureReason,
		completedAt,
		now,
		id,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update transfer %d: %w", id, err)
	}
	if err := requireOneRow(result, util.ErrStatusConflict); err != nil {
		if _, getErr := r.GetTransferByID(ctx, q, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}
