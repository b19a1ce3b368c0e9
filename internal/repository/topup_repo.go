// internal/repository/topup_repo.go
package repository

import (
	"context"
	"time"

	"wallet-ledger/internal/domain"
)

// TopUpRepository defines the interface for top-up request operations.
type TopUpRepository interface {
	CreateTopUpRequest(ctx context.Context, q DBExecutor, request *domain.TopUpRequest) error
	GetTopUpRequestByID(ctx context.Context, q DBExecutor, id int64) (*domain.TopUpRequest, error)
	// GetTopUpRequestByGatewayOrderID looks a request up by the order id the gateway reports back.
	GetTopUpRequestByGatewayOrderID(ctx context.Context, q DBExecutor, orderID string) (*domain.TopUpRequest, error)
	// SetGatewayPayment stores the payment intent returned by the gateway.
	SetGatewayPayment(ctx context.Context, q DBExecutor, id int64, paymentID, payURL string) error
	// ResolveTopUpRequest applies res if the request is still in from, otherwise util.ErrStatusConflict.
	ResolveTopUpRequest(ctx context.Context, q DBExecutor, id int64, from domain.TopUpStatus, res domain.TopUpResolution) error
	// ListTopUpRequestsByStatus lists requests in status created before olderThan, oldest first.
	ListTopUpRequestsByStatus(ctx context.Context, q DBExecutor, status domain.TopUpStatus, olderThan time.Time, limit int) ([]domain.TopUpRequest, error)
}
