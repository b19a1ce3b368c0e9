// internal/repository/postgres/reservation_pg.go
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
	"wallet-ledger/pkg/db"

	"github.com/jmoiron/sqlx"
)

const reservationColumns = `id, product_id, quantity, holder_id, expires_at, is_active, created_at, released_at, release_reason`

// ReservationRepository implements repository.ReservationRepository for
// PostgreSQL. Reserve serializes per product with a transaction-scoped
// advisory lock; release and sweep are conditional on is_active.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository.
func NewReservationRepository(database *sqlx.DB) repository.ReservationRepository {
	return &ReservationRepository{db: database}
}

func (r *ReservationRepository) Reserve(ctx context.Context, reservation *domain.StockReservation, stock int64) error {
	tx, err := db.BeginTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("reserve: %w", err)
	}
	defer db.RollbackTx(tx)
	sqlTx := tx.(*sqlx.Tx)

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, reservation.ProductID); err != nil {
		return fmt.Errorf("reserve: failed to lock product %d: %w", reservation.ProductID, err)
	}

	var held int64
	heldQuery := `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
                  WHERE product_id = $1 AND is_active AND expires_at > $2`
	if err := sqlTx.GetContext(ctx, &held, heldQuery, reservation.ProductID, reservation.CreatedAt); err != nil {
		return fmt.Errorf("reserve: failed to sum active reservations: %w", err)
	}
	if held+reservation.Quantity > stock {
		return util.ErrNoStockAvailable
	}

	insert := `INSERT INTO stock_reservations (id, product_id, quantity, holder_id, expires_at, is_active, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := sqlTx.ExecContext(ctx, insert,
		reservation.ID,
		reservation.ProductID,
		reservation.Quantity,
		reservation.HolderID,
		reservation.ExpiresAt,
		reservation.IsActive,
		reservation.CreatedAt,
	); err != nil {
		return fmt.Errorf("reserve: failed to insert reservation: %w", err)
	}

	return db.CommitTx(tx)
}

func (r *ReservationRepository) Release(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE stock_reservations SET is_active = FALSE, released_at = $1, release_reason = $2
              WHERE id = $3 AND is_active`
	result, err := r.db.ExecContext(ctx, query, at, domain.ReleaseReasonReleased, id)
	if err != nil {
		if isInvalidText(err) {
			return false, util.ErrNotFound
		}
		return false, fmt.Errorf("failed to release reservation %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after releasing reservation %s: %w", id, err)
	}
	if rows == 0 {
		if _, err := r.GetReservation(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *ReservationRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE stock_reservations SET is_active = FALSE, released_at = $1, release_reason = $2
              WHERE is_active AND expires_at <= $1`
	result, err := r.db.ExecContext(ctx, query, now, domain.ReleaseReasonExpired)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired reservations: %w", err)
	}
	swept, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected after sweep: %w", err)
	}
	return swept, nil
}

func (r *ReservationRepository) ActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error) {
	var held int64
	query := `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
              WHERE product_id = $1 AND is_active AND expires_at > $2`
	if err := r.db.GetContext(ctx, &held, query, productID, now); err != nil {
		return 0, fmt.Errorf("failed to sum reservations of product %d: %w", productID, err)
	}
	return held, nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (*domain.StockReservation, error) {
	var reservation domain.StockReservation
	if err := r.db.GetContext(ctx, &reservation, `SELECT `+reservationColumns+` FROM stock_reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get reservation %s: %w", id, err)
	}
	return &reservation, nil
}
