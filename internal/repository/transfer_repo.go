// internal/repository/transfer_repo.go
package repository

import (
	"context"

	"wallet-ledger/internal/domain"
)

// TransferRepository defines the interface for transfer data operations.
type TransferRepository interface {
	CreateTransfer(ctx context.Context, q DBExecutor, transfer *domain.Transfer) error
	GetTransferByID(ctx context.Context, q DBExecutor, id int64) (*domain.Transfer, error)
	GetTransferByCode(ctx context.Context, q DBExecutor, code string) (*domain.Transfer, error)
	// UpdateTransfer applies update if the transfer is still in from, otherwise util.ErrStatusConflict.
	UpdateTransfer(ctx context.Context, q DBExecutor, id int64, from domain.TransactionStatus, update domain.TransferUpdate) error
}
