// internal/repository/postgres/topup_pg.go
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

const topUpColumns = `id, code, account_id, amount, payment_method, status, proof_url, notes, processed_by,
       processed_at, gateway_order_id, gateway_payment_id, gateway_transaction_id, pay_url,
       transaction_id, created_at, updated_at`

// TopUpRepository implements repository.TopUpRepository for PostgreSQL.
type TopUpRepository struct{}

// NewTopUpRepository creates a new TopUpRepository.
func NewTopUpRepository() repository.TopUpRepository {
	return &TopUpRepository{}
}

// CreateTopUpRequest inserts a PENDING request. A code collision returns util.ErrDuplicateCode.
func (r *TopUpRepository) CreateTopUpRequest(ctx context.Context, q repository.DBExecutor, request *domain.TopUpRequest) error {
	query := `INSERT INTO topup_requests (code, account_id, amount, payment_method, status, proof_url, notes,
                                          gateway_order_id, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
              ON CONFLICT (code) DO NOTHING
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		request.Code,
		request.AccountID,
		request.Amount,
		request.PaymentMethod,
		request.Status,
		request.ProofURL,
		request.Notes,
		request.GatewayOrderID,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return util.ErrDuplicateCode
		}
		return fmt.Errorf("failed to create top-up request: %w", err)
	}
	return nil
}

func (r *TopUpRepository) GetTopUpRequestByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.TopUpRequest, error) {
	var request domain.TopUpRequest
	if err := q.GetContext(ctx, &request, `SELECT `+topUpColumns+` FROM topup_requests WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get top-up request by ID %d: %w", id, err)
	}
	return &request, nil
}

func (r *TopUpRepository) GetTopUpRequestByGatewayOrderID(ctx context.Context, q repository.DBExecutor, orderID string) (*domain.TopUpRequest, error) {
	var request domain.TopUpRequest
	if err := q.GetContext(ctx, &request, `SELECT `+topUpColumns+` FROM topup_requests WHERE gateway_order_id = $1`, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get top-up request by order %s: %w", orderID, err)
	}
	return &request, nil
}

// SetGatewayPayment stores the payment intent returned by the gateway.
func (r *TopUpRepository) SetGatewayPayment(ctx context.Context, q repository.DBExecutor, id int64, paymentID, payURL string) error {
	query := `UPDATE topup_requests SET gateway_payment_id = $1, pay_url = $2, updated_at = $3 WHERE id = $4`
	result, err := q.ExecContext(ctx, query, paymentID, payURL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to store gateway payment for top-up %d: %w", id, err)
	}
	return requireOneRow(result, util.ErrNotFound)
}

// ResolveTopUpRequest applies res when the request is still in from.
func (r *TopUpRepository) ResolveTopUpRequest(ctx context.Context, q repository.DBExecutor, id int64, from domain.TopUpStatus, res domain.TopUpResolution) error {
	now := time.Now().UTC()
	query := `UPDATE topup_requests SET
                  status = $1,
                  processed_by = $2,
                  processed_at = $3,
                  transaction_id = COALESCE($4, transaction_id),
                  gateway_transaction_id = COALESCE($5, gateway_transaction_id),
                  notes = COALESCE($6, notes),
                  updated_at = $3
              WHERE id = $7 AND status = $8`
	result, err := q.ExecContext(ctx, query,
		res.Status,
		res.ProcessedBy,
		now,
		res.TransactionID,
		res.GatewayTransactionID,
		res.Notes,
		id,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve top-up request %d: %w", id, err)
	}
	if err := requireOneRow(result, util.ErrStatusConflict); err != nil {
		if _, getErr := r.GetTopUpRequestByID(ctx, q, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

// ListTopUpRequestsByStatus lists requests in status created before olderThan, oldest first.
func (r *TopUpRepository) ListTopUpRequestsByStatus(ctx context.Context, q repository.DBExecutor, status domain.TopUpStatus, olderThan time.Time, limit int) ([]domain.TopUpRequest, error) {
	requests := []domain.TopUpRequest{}
	query := `SELECT ` + topUpColumns + ` FROM topup_requests
              WHERE status = $1 AND created_at < $2
              ORDER BY id ASC LIMIT $3`
	if err := q.SelectContext(ctx, &requests, query, status, olderThan, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list %s top-up requests: %w", status, err)
	}
	return requests, nil
}
