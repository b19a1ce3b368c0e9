// internal/domain/reservation.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Release reasons recorded when a reservation stops being active.
const (
	ReleaseReasonReleased = "RELEASED"
	ReleaseReasonExpired  = "EXPIRED"
)

// StockReservation is a temporary claim on product stock held by a purchase flow.
type StockReservation struct {
	ID            string     `db:"id" json:"id"`
	ProductID     int64      `db:"product_id" json:"product_id"`
	Quantity      int64      `db:"quantity" json:"quantity"`
	HolderID      string     `db:"holder_id" json:"holder_id"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	ReleasedAt    *time.Time `db:"released_at" json:"released_at,omitempty"`
	ReleaseReason string     `db:"release_reason" json:"release_reason,omitempty"`
}

// NewStockReservation creates an active reservation expiring ttl after now.
func NewStockReservation(productID, quantity int64, holderID string, now time.Time, ttl time.Duration) *StockReservation {
	return &StockReservation{
		ID:        uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
		HolderID:  holderID,
		ExpiresAt: now.Add(ttl),
		IsActive:  true,
		CreatedAt: now,
	}
}

// Holds reports whether the reservation still counts against stock at now.
func (r *StockReservation) Holds(now time.Time) bool {
	return r.IsActive && now.Before(r.ExpiresAt)
}
