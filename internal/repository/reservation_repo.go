// internal/repository/reservation_repo.go
package repository

import (
	"context"
	"time"

	"wallet-ledger/internal/domain"
)

// ReservationRepository stores stock reservations. Unlike the ledger
// repositories it owns its own atomicity: every method is a complete
// check-and-write unit, so it takes no DBExecutor.
type ReservationRepository interface {
	// Reserve inserts reservation if the active, unexpired quantity already held
	// for its product plus its own quantity does not exceed stock.
	// Returns util.ErrNoStockAvailable otherwise.
	Reserve(ctx context.Context, reservation *domain.StockReservation, stock int64) error
	// Release deactivates a reservation. Returns false when it was already inactive
	// and util.ErrNotFound for an unknown id.
	Release(ctx context.Context, id string, at time.Time) (bool, error)
	// SweepExpired deactivates every active reservation whose expiry is not after now.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	// ActiveQuantity sums the active, unexpired reservations of a product at now.
	ActiveQuantity(ctx context.Context, productID int64, now time.Time) (int64, error)
	GetReservation(ctx context.Context, id string) (*domain.StockReservation, error)
}
