// internal/domain/transfer.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferCodePrefix prefixes every generated transfer code.
const TransferCodePrefix = "TRF"

// Transfer coordinates the two ledger entries of a peer-to-peer payment.
// It never moves money by itself: Status is SUCCESS only when both linked
// transactions are SUCCESS.
type Transfer struct {
	ID                    int64             `db:"id" json:"id"`
	Code                  string            `db:"code" json:"code"`
	SenderAccountID       int64             `db:"sender_account_id" json:"sender_account_id"`
	ReceiverAccountID     int64             `db:"receiver_account_id" json:"receiver_account_id"`
	Amount                decimal.Decimal   `db:"amount" json:"amount"`
	Status                TransactionStatus `db:"status" json:"status"`
	Description           *string           `db:"description" json:"description,omitempty"`
	SenderTransactionID   *int64            `db:"sender_transaction_id" json:"sender_transaction_id,omitempty"`
	ReceiverTransactionID *int64            `db:"receiver_transaction_id" json:"receiver_transaction_id,omitempty"`
	RefundTransactionID   *int64            `db:"refund_transaction_id" json:"refund_transaction_id,omitempty"`
	FailureReason         *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt             time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time         `db:"updated_at" json:"updated_at"`
	CompletedAt           *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// NewTransfer creates a PENDING transfer.
func NewTransfer(senderID, receiverID int64, amount decimal.Decimal, description *string) *Transfer {
	now := time.Now().UTC()
	return &Transfer{
		SenderAccountID:   senderID,
		ReceiverAccountID: receiverID,
		Amount:            amount,
		Status:            TransactionStatusPending,
		Description:       description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// TransferUpdate carries the fields a status transition may set on a Transfer.
type TransferUpdate struct {
	Status                TransactionStatus
	SenderTransactionID   *int64
	ReceiverTransactionID *int64
	RefundTransactionID   *int64
	FailureReason         *string
}

// Apply copies the update onto t, keeping links that are already set.
func (u TransferUpdate) Apply(t *Transfer, at time.Time) {
	t.Status = u.Status
	if u.SenderTransactionID != nil {
		t.SenderTransactionID = u.SenderTransactionID
	}
	if u.ReceiverTransactionID != nil {
		t.ReceiverTransactionID = u.ReceiverTransactionID
	}
	if u.RefundTransactionID != nil {
		t.RefundTransactionID = u.RefundTransactionID
	}
	if u.FailureReason != nil {
		t.FailureReason = u.FailureReason
	}
	t.UpdatedAt = at
	if u.Status.IsTerminal() {
		t.CompletedAt = &at
	}
}
