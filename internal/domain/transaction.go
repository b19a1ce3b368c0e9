// internal/domain/transaction.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionType defines the type of a ledger entry.
type TransactionType string

const (
	TransactionTypeTopUpManual     TransactionType = "TOPUP_MANUAL"
	TransactionTypeTopUpGateway    TransactionType = "TOPUP_GATEWAY"
	TransactionTypeTransferSend    TransactionType = "TRANSFER_SEND"
	TransactionTypeTransferReceive TransactionType = "TRANSFER_RECEIVE"
	TransactionTypePPOBPayment     TransactionType = "PPOB_PAYMENT"
	TransactionTypeRefund          TransactionType = "REFUND"
)

// IsValid reports whether t is one of the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeTopUpManual, TransactionTypeTopUpGateway,
		TransactionTypeTransferSend, TransactionTypeTransferReceive,
		TransactionTypePPOBPayment, TransactionTypeRefund:
		return true
	}
	return false
}

// IsDebit reports whether the type takes money out of the owning account.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeTransferSend || t == TransactionTypePPOBPayment
}

// AmountScale is the number of decimal places stored for money.
const AmountScale = 4

// ValidAmount reports whether amount is positive and has no more than
// AmountScale decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(AmountScale))
}

// SignedDelta returns the balance change that amount of type t causes.
func (t TransactionType) SignedDelta(amount decimal.Decimal) decimal.Decimal {
	if t.IsDebit() {
		return amount.Neg()
	}
	return amount
}

// TransactionStatus defines the status of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSuccess   TransactionStatus = "SUCCESS"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// CanTransitionTo reports whether s -> next is a legal state machine edge.
// Only PENDING may move, and only to a terminal status.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

// TransactionCodePrefix prefixes every generated transaction code.
const TransactionCodePrefix = "TRX"

// Transaction is an immutable ledger entry against a single account.
type Transaction struct {
	ID            int64             `db:"id" json:"id"`                               // Primary key, BIGSERIAL in DB
	Code          string            `db:"code" json:"code"`                           // Unique human-readable code
	AccountID     int64             `db:"account_id" json:"account_id"`               // Owning account
	Type          TransactionType   `db:"type" json:"type"`                           // Entry type, decides the sign
	Amount        decimal.Decimal   `db:"amount" json:"amount"`                       // Always > 0, NUMERIC(20, 4) in DB
	BalanceBefore decimal.Decimal   `db:"balance_before" json:"balance_before"`       // Account balance before this entry
	BalanceAfter  decimal.Decimal   `db:"balance_after" json:"balance_after"`         // Account balance after this entry
	Status        TransactionStatus `db:"status" json:"status"`                       // PENDING, SUCCESS, FAILED, CANCELLED
	Description   *string           `db:"description" json:"description,omitempty"`   // Optional free text
	ReferenceID   *string           `db:"reference_id" json:"reference_id,omitempty"` // Gateway order id, provider ref, transfer code
	Metadata      types.JSONText    `db:"metadata" json:"metadata,omitempty"`         // Optional structured metadata
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	ProcessedAt   *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
}

// NewTransaction creates a SUCCESS transaction for an already applied balance change.
func NewTransaction(
	accountID int64,
	txType TransactionType,
	amount, balanceBefore, balanceAfter decimal.Decimal,
	referenceID, description *string,
	metadata map[string]any,
) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		AccountID:     accountID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Status:        TransactionStatusSuccess,
		Description:   description,
		ReferenceID:   referenceID,
		Metadata:      EncodeMetadata(metadata),
		CreatedAt:     now,
		ProcessedAt:   &now,
	}
}

// NewAttemptTransaction creates a record of an attempt that did not move
// money. balance is the account balance at the time of the attempt.
func NewAttemptTransaction(
	accountID int64,
	txType TransactionType,
	amount, balance decimal.Decimal,
	status TransactionStatus,
	referenceID, description *string,
	metadata map[string]any,
) *Transaction {
	t := NewTransaction(accountID, txType, amount, balance, balance, referenceID, description, metadata)
	t.Status = status
	if status == TransactionStatusPending {
		t.ProcessedAt = nil
	}
	return t
}

// EncodeMetadata marshals metadata to JSON; nil or empty maps become NULL.
func EncodeMetadata(metadata map[string]any) types.JSONText {
	if len(metadata) == 0 {
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return types.JSONText(raw)
}

// DecodeMetadata unmarshals the metadata column into a map.
func (t *Transaction) DecodeMetadata() map[string]any {
	if len(t.Metadata) == 0 {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(t.Metadata, &out); err != nil {
		return nil
	}
	return out
}
