// internal/domain/account.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Account is a wallet owned by a user. Its balance is written only by the
// balance mutator.
type Account struct {
	ID            int64           `db:"id" json:"id"`                                     // Primary key, BIGSERIAL in DB
	OwnerRef      string          `db:"owner_ref" json:"owner_ref"`                       // Reference to the account holder
	Balance       decimal.Decimal `db:"balance" json:"balance"`                           // Current balance, NUMERIC(20, 4) in DB, never negative
	IsActive      bool            `db:"is_active" json:"is_active"`                       // False once soft-deactivated
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`                     // Timestamp of creation
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`                     // Timestamp of last update
	DeactivatedAt *time.Time      `db:"deactivated_at" json:"deactivated_at,omitempty"` // Set on soft deactivation
}

// NewAccount creates a new active Account with a zero balance.
func NewAccount(ownerRef string) *Account {
	now := time.Now().UTC()
	return &Account{
		OwnerRef:  ownerRef,
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
