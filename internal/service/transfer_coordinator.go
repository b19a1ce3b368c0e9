// internal/service/transfer_coordinator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// TransferMode selects how the two legs of a transfer are committed.
type TransferMode string

const (
	// TransferModeSaga debits the sender, then credits the receiver, and
	// refunds the sender if the credit fails.
	TransferModeSaga TransferMode = "saga"
	// TransferModeAtomic writes both legs in one storage transaction.
	TransferModeAtomic TransferMode = "atomic"
)

// ParseTransferMode returns the mode named by s, defaulting to saga.
func ParseTransferMode(s string) TransferMode {
	if TransferMode(strings.ToLower(strings.TrimSpace(s))) == TransferModeAtomic {
		return TransferModeAtomic
	}
	return TransferModeSaga
}

// TransferCoordinator moves money between two accounts.
type TransferCoordinator struct {
	dbExecutor   repository.DBExecutor
	accountRepo  repository.AccountRepository
	transferRepo repository.TransferRepository
	engine       *TransactionEngine
	mode         TransferMode
	newCode      domain.CodeGenerator
	codeAttempts int
	metrics      metrics.Collector
	logger       *slog.Logger
}

// NewTransferCoordinator creates a TransferCoordinator.
func NewTransferCoordinator(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	transferRepo repository.TransferRepository,
	engine *TransactionEngine,
	mode TransferMode,
	newCode domain.CodeGenerator,
	codeAttempts int,
	collector metrics.Collector,
	logger *slog.Logger,
) *TransferCoordinator {
	if newCode == nil {
		newCode = domain.GenerateCode
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if mode != TransferModeAtomic {
		mode = TransferModeSaga
	}
	return &TransferCoordinator{
		dbExecutor:   dbExecutor,
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		engine:       engine,
		mode:         mode,
		newCode:      newCode,
		codeAttempts: codeAttempts,
		metrics:      collector,
		logger:       logger.With("component", "transfer_coordinator"),
	}
}

// Mode returns the configured commit mode.
func (c *TransferCoordinator) Mode() TransferMode { return c.mode }

// Transfer moves amount from senderID to receiverID. When the transfer was
// created but did not succeed, the returned Transfer carries its final
// status alongside the error.
func (c *TransferCoordinator) Transfer(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal, description *string) (*domain.Transfer, error) {
	start := time.Now()
	if !domain.ValidAmount(amount) {
		return nil, util.ErrInvalidAmount
	}
	if senderID == receiverID {
		return nil, util.ErrSameAccountTransfer
	}
	for _, id := range []int64{senderID, receiverID} {
		if _, err := c.accountRepo.GetAccountByID(ctx, c.dbExecutor, id); err != nil {
			return nil, fmt.Errorf("transfer: failed to get account %d: %w", id, err)
		}
	}

	transfer := domain.NewTransfer(senderID, receiverID, amount, description)
	err := insertWithUniqueCode(c.newCode, domain.TransferCodePrefix, c.codeAttempts, func(code string) error {
		transfer.Code = code
		return c.transferRepo.CreateTransfer(ctx, c.dbExecutor, transfer)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to create transfer: %w", err)
	}

	if c.mode == TransferModeAtomic {
		err = c.runAtomic(ctx, transfer)
	} else {
		err = c.runSaga(ctx, transfer)
	}
	c.metrics.RecordTransfer(string(transfer.Status), time.Since(start))
	if err != nil {
		return transfer, err
	}

	c.logger.Info("transfer completed",
		"transfer_code", transfer.Code,
		"sender_account_id", senderID,
		"receiver_account_id", receiverID,
		"amount", amount.String(),
		"mode", c.mode)
	return transfer, nil
}

func (c *TransferCoordinator) runSaga(ctx context.Context, transfer *domain.Transfer) error {
	ref := transfer.Code
	send, err := c.engine.Record(ctx, RecordRequest{
		AccountID:   transfer.SenderAccountID,
		Type:        domain.TransactionTypeTransferSend,
		Amount:      transfer.Amount,
		ReferenceID: &ref,
		Description: transfer.Description,
		Metadata:    map[string]any{"receiver_account_id": transfer.ReceiverAccountID},
	})
	if err != nil {
		return c.failBeforeCommit(ctx, transfer, err)
	}

	receive, err := c.engine.Record(ctx, RecordRequest{
		AccountID:   transfer.ReceiverAccountID,
		Type:        domain.TransactionTypeTransferReceive,
		Amount:      transfer.Amount,
		ReferenceID: &ref,
		Description: transfer.Description,
		Metadata:    map[string]any{"sender_account_id": transfer.SenderAccountID},
	})
	if err != nil {
		return c.compensate(ctx, transfer, send, err)
	}

	return c.finish(ctx, c.dbExecutor, transfer, domain.TransferUpdate{
		Status:                domain.TransactionStatusSuccess,
		SenderTransactionID:   &send.ID,
		ReceiverTransactionID: &receive.ID,
	})
}

func (c *TransferCoordinator) runAtomic(ctx context.Context, transfer *domain.Transfer) error {
	ref := transfer.Code
	reqs := []RecordRequest{
		{
			AccountID:   transfer.SenderAccountID,
			Type:        domain.TransactionTypeTransferSend,
			Amount:      transfer.Amount,
			ReferenceID: &ref,
			Description: transfer.Description,
			Metadata:    map[string]any{"receiver_account_id": transfer.ReceiverAccountID},
		},
		{
			AccountID:   transfer.ReceiverAccountID,
			Type:        domain.TransactionTypeTransferReceive,
			Amount:      transfer.Amount,
			ReferenceID: &ref,
			Description: transfer.Description,
			Metadata:    map[string]any{"sender_account_id": transfer.SenderAccountID},
		},
	}

	pending := *transfer
	_, err := c.engine.RecordAll(ctx, reqs, func(ctx context.Context, q repository.DBExecutor, txns []*domain.Transaction) error {
		return c.finish(ctx, q, &pending, domain.TransferUpdate{
			Status:                domain.TransactionStatusSuccess,
			SenderTransactionID:   &txns[0].ID,
			ReceiverTransactionID: &txns[1].ID,
		})
	})
	if err != nil {
		return c.failBeforeCommit(ctx, transfer, err)
	}
	*transfer = pending
	return nil
}

// failBeforeCommit settles a transfer when no ledger entry for it committed.
func (c *TransferCoordinator) failBeforeCommit(ctx context.Context, transfer *domain.Transfer, cause error) error {
	if util.IsExternalServiceError(cause) {
		c.logger.Warn("transfer left pending, external service unavailable",
			"transfer_code", transfer.Code, "error", cause)
		return fmt.Errorf("transfer %s: %w", transfer.Code, cause)
	}
	reason := cause.Error()
	if err := c.finish(ctx, c.dbExecutor, transfer, domain.TransferUpdate{
		Status:        domain.TransactionStatusFailed,
		FailureReason: &reason,
	}); err != nil {
		c.logger.Error("failed to mark transfer failed", "transfer_code", transfer.Code, "error", err)
	}
	return fmt.Errorf("transfer %s: not committed: %w", transfer.Code, cause)
}

// compensate refunds the sender after the receiver leg failed.
func (c *TransferCoordinator) compensate(ctx context.Context, transfer *domain.Transfer, send *domain.Transaction, receiverErr error) error {
	ref := transfer.Code
	reason := "receiver leg failed: " + receiverErr.Error()
	refund, refundErr := c.engine.Record(ctx, RecordRequest{
		AccountID:    transfer.SenderAccountID,
		Type:         domain.TransactionTypeRefund,
		Amount:       transfer.Amount,
		ReferenceID:  &ref,
		Description:  &reason,
		Metadata:     map[string]any{"refunded_transaction_code": send.Code},
		Compensation: true,
	})
	if refundErr != nil {
		recErr := &util.ReconciliationRequiredError{
			TransferID:          transfer.ID,
			TransferCode:        transfer.Code,
			SenderAccountID:     transfer.SenderAccountID,
			ReceiverAccountID:   transfer.ReceiverAccountID,
			SenderTransactionID: send.ID,
			SenderTxnCode:       send.Code,
			ReceiverErr:         receiverErr,
			CompensationErr:     refundErr,
		}
		c.logger.Error("transfer requires reconciliation",
			"transfer_id", transfer.ID,
			"transfer_code", transfer.Code,
			"sender_account_id", transfer.SenderAccountID,
			"receiver_account_id", transfer.ReceiverAccountID,
			"sender_transaction_id", send.ID,
			"sender_transaction_code", send.Code,
			"amount", transfer.Amount.String(),
			"receiver_error", receiverErr,
			"refund_error", refundErr)
		c.metrics.RecordReconciliationRequired()

		note := "reconciliation required: " + refundErr.Error()
		if err := c.finish(ctx, c.dbExecutor, transfer, domain.TransferUpdate{
			Status:              domain.TransactionStatusPending,
			SenderTransactionID: &send.ID,
			FailureReason:       &note,
		}); err != nil {
			c.logger.Error("failed to annotate transfer", "transfer_code", transfer.Code, "error", err)
		}
		return recErr
	}

	c.logger.Warn("transfer refunded after receiver leg failed",
		"transfer_code", transfer.Code,
		"sender_transaction_code", send.Code,
		"refund_transaction_code", refund.Code,
		"error", receiverErr)
	if err := c.finish(ctx, c.dbExecutor, transfer, domain.TransferUpdate{
		Status:              domain.TransactionStatusFailed,
		SenderTransactionID: &send.ID,
		RefundTransactionID: &refund.ID,
		FailureReason:       &reason,
	}); err != nil {
		c.logger.Error("failed to mark refunded transfer failed", "transfer_code", transfer.Code, "error", err)
	}
	return fmt.Errorf("transfer %s: receiver leg failed, sender refunded: %w", transfer.Code, receiverErr)
}

// finish moves a PENDING transfer to update.Status and mirrors it onto transfer.
func (c *TransferCoordinator) finish(ctx context.Context, q repository.DBExecutor, transfer *domain.Transfer, update domain.TransferUpdate) error {
	if err := c.transferRepo.UpdateTransfer(ctx, q, transfer.ID, domain.TransactionStatusPending, update); err != nil {
		return fmt.Errorf("transfer %s: failed to update status to %s: %w", transfer.Code, update.Status, err)
	}
	update.Apply(transfer, time.Now().UTC())
	return nil
}

// GetTransfer returns a transfer by its code.
func (c *TransferCoordinator) GetTransfer(ctx context.Context, code string) (*domain.Transfer, error) {
	transfer, err := c.transferRepo.GetTransferByCode(ctx, c.dbExecutor, code)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get transfer %s: %w", code, err)
	}
	return transfer, nil
}
