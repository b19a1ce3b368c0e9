// internal/util/errors_test.go
package util

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalServiceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("record: %w", &ExternalServiceError{Service: "fraud", Err: cause})

	assert.True(t, IsExternalServiceError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "external service fraud unavailable")
	assert.False(t, IsExternalServiceError(ErrNotFound))
}

func TestReconciliationRequiredError(t *testing.T) {
	receiverErr := fmt.Errorf("credit receiver: %w", ErrAccountInactive)
	compErr := errors.New("storage unavailable")
	err := fmt.Errorf("transfer: %w", &ReconciliationRequiredError{
		TransferID:          7,
		TransferCode:        "TRF-20260101000000-AAAAAAAA",
		SenderTransactionID: 41,
		SenderTxnCode:       "TRX-20260101000000-BBBBBBBB",
		ReceiverErr:         receiverErr,
		CompensationErr:     compErr,
	})

	assert.True(t, IsReconciliationRequired(err))
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.ErrorIs(t, err, compErr)

	var rec *ReconciliationRequiredError
	if assert.True(t, errors.As(err, &rec)) {
		assert.Equal(t, int64(7), rec.TransferID)
		assert.Equal(t, int64(41), rec.SenderTransactionID)
	}
	assert.Contains(t, err.Error(), "TRF-20260101000000-AAAAAAAA")
	assert.Contains(t, err.Error(), "TRX-20260101000000-BBBBBBBB")
}

func TestAccountRejectedError(t *testing.T) {
	err := fmt.Errorf("apply balance: %w", &AccountRejectedError{AccountID: 9, Err: ErrAccountInactive})

	id, ok := RejectedAccountID(err)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Contains(t, err.Error(), "account 9")

	_, ok = RejectedAccountID(ErrInsufficientFunds)
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
