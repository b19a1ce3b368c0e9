// internal/domain/domain_test.go
package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateCode(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	code := generateCodeAt(TransactionCodePrefix, at)

	assert.Regexp(t, regexp.MustCompile(`^TRX-20260304050607-[0-9A-F]{8}$`), code)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		seen[GenerateCode(TransferCodePrefix)] = struct{}{}
	}
	assert.Len(t, seen, 1000, "codes generated in the same second should not collide")
}

func TestTransactionTypeSignedDelta(t *testing.T) {
	amount := decimal.NewFromInt(2500)

	credits := []TransactionType{TransactionTypeTopUpManual, TransactionTypeTopUpGateway, TransactionTypeTransferReceive, TransactionTypeRefund}
	for _, tt := range credits {
		assert.False(t, tt.IsDebit(), tt)
		assert.True(t, amount.Equal(tt.SignedDelta(amount)), tt)
	}

	debits := []TransactionType{TransactionTypeTransferSend, TransactionTypePPOBPayment}
	for _, tt := range debits {
		assert.True(t, tt.IsDebit(), tt)
		assert.True(t, amount.Neg().Equal(tt.SignedDelta(amount)), tt)
	}

	assert.False(t, TransactionType("CASHBACK").IsValid())
}

func TestValidAmount(t *testing.T) {
	assert.True(t, ValidAmount(decimal.RequireFromString("0.0001")))
	assert.True(t, ValidAmount(decimal.RequireFromString("12.3400")))
	assert.False(t, ValidAmount(decimal.RequireFromString("1.00005")))
	assert.False(t, ValidAmount(decimal.Zero))
	assert.False(t, ValidAmount(decimal.NewFromInt(-1)))
}

func TestTransactionStatusTransitions(t *testing.T) {
	assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusSuccess))
	assert.True(t, TransactionStatusPending.CanTransitionTo(TransactionStatusCancelled))
	assert.False(t, TransactionStatusPending.CanTransitionTo(TransactionStatusPending))
	assert.False(t, TransactionStatusSuccess.CanTransitionTo(TransactionStatusFailed))
	assert.False(t, TransactionStatusCancelled.CanTransitionTo(TransactionStatusSuccess))
}

func TestAttemptTransactionKeepsBalance(t *testing.T) {
	balance := decimal.NewFromInt(10000)
	txn := NewAttemptTransaction(1, TransactionTypePPOBPayment, decimal.NewFromInt(15000), balance,
		TransactionStatusFailed, nil, nil, map[string]any{"reason": "insufficient funds"})

	assert.Equal(t, TransactionStatusFailed, txn.Status)
	assert.True(t, txn.BalanceBefore.Equal(balance))
	assert.True(t, txn.BalanceAfter.Equal(balance))
	assert.Equal(t, "insufficient funds", txn.DecodeMetadata()["reason"])

	pending := NewAttemptTransaction(1, TransactionTypePPOBPayment, decimal.NewFromInt(1), balance,
		TransactionStatusPending, nil, nil, nil)
	assert.Nil(t, pending.ProcessedAt)
	assert.Nil(t, pending.Metadata)
}

func TestStockReservationHolds(t *testing.T) {
	now := time.Now()
	r := NewStockReservation(9, 5, "order-1", now, time.Minute)

	assert.NotEmpty(t, r.ID)
	assert.True(t, r.Holds(now))
	assert.False(t, r.Holds(now.Add(time.Minute)))

	r.IsActive = false
	assert.False(t, r.Holds(now))
}
