// internal/service/purchase_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// PurchaseRequest is a PPOB purchase paid from a wallet.
type PurchaseRequest struct {
	AccountID   int64
	ProductID   int64
	Quantity    int64
	UnitPrice   decimal.Decimal
	HolderID    string
	ProviderRef *string
	Description *string
}

// PurchaseResult is a completed purchase.
type PurchaseResult struct {
	Transaction   *domain.Transaction `json:"transaction"`
	ReservationID string              `json:"reservation_id"`
}

// PurchaseService pays for PPOB products: it holds stock, debits the
// account, and releases the hold whatever the outcome.
type PurchaseService struct {
	reservations *ReservationManager
	engine       *TransactionEngine
	logger       *slog.Logger
}

func NewPurchaseService(reservations *ReservationManager, engine *TransactionEngine, logger *slog.Logger) *PurchaseService {
	return &PurchaseService{
		reservations: reservations,
		engine:       engine,
		logger:       logger.With("component", "purchase_service"),
	}
}

func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("purchase: quantity must be positive: %w", util.ErrInvalidInput)
	}
	if !domain.ValidAmount(req.UnitPrice) {
		return nil, util.ErrInvalidAmount
	}
	holder := req.HolderID
	if holder == "" {
		holder = fmt.Sprintf("account:%d", req.AccountID)
	}

	reservation, err := s.reservations.Reserve(ctx, req.ProductID, req.Quantity, holder, 0)
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}
	defer func() {
		if err := s.reservations.Release(ctx, reservation.ID); err != nil {
			s.logger.Error("failed to release purchase reservation", "reservation_id", reservation.ID, "error", err)
		}
	}()

	amount := req.UnitPrice.Mul(decimal.NewFromInt(req.Quantity))
	txn, err := s.engine.Record(ctx, RecordRequest{
		AccountID:   req.AccountID,
		Type:        domain.TransactionTypePPOBPayment,
		Amount:      amount,
		ReferenceID: req.ProviderRef,
		Description: req.Description,
		Metadata: map[string]any{
			"product_id":     req.ProductID,
			"quantity":       req.Quantity,
			"unit_price":     req.UnitPrice.String(),
			"reservation_id": reservation.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}

	s.logger.Info("ppob purchase paid", "transaction_code", txn.Code, "account_id", req.AccountID, "product_id", req.ProductID, "amount", amount.String())
	return &PurchaseResult{Transaction: txn, ReservationID: reservation.ID}, nil
}
