// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Common application-specific errors.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input provided")
	ErrInvalidAmount       = errors.New("amount must be positive with at most 4 decimal places")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateCode       = errors.New("duplicate code")
	ErrNoStockAvailable    = errors.New("no stock available")
	ErrTransactionBlocked  = errors.New("transaction blocked by fraud screening")
	ErrStatusConflict      = errors.New("record is not in the expected status")
	ErrAccountInactive     = errors.New("account is deactivated")
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
)

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// ExternalServiceError is returned when a collaborating service (payment
// gateway, fraud scoring) is unreachable or tripped its circuit breaker.
// Records affected by it stay PENDING.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s unavailable: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsExternalServiceError reports whether err carries an *ExternalServiceError.
func IsExternalServiceError(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext)
}

// AccountRejectedError names the account whose state refused a balance
// change, such as a deactivated account or one without enough funds.
type AccountRejectedError struct {
	AccountID int64
	Err       error
}

func (e *AccountRejectedError) Error() string {
	return fmt.Sprintf("account %d: %v", e.AccountID, e.Err)
}

func (e *AccountRejectedError) Unwrap() error {
	return e.Err
}

// RejectedAccountID returns the account that refused the change carried by
// err, if any.
func RejectedAccountID(err error) (int64, bool) {
	var rejected *AccountRejectedError
	if !errors.As(err, &rejected) {
		return 0, false
	}
	return rejected.AccountID, true
}

// ReconciliationRequiredError means a transfer debited the sender, failed to
// credit the receiver, and then failed to refund the sender. Money is out of
// balance until an operator intervenes. It must never be retried automatically.
type ReconciliationRequiredError struct {
	TransferID          int64
	TransferCode        string
	SenderAccountID     int64
	ReceiverAccountID   int64
	SenderTransactionID int64
	SenderTxnCode       string
	ReceiverErr         error
	CompensationErr     error
}

func (e *ReconciliationRequiredError) Error() string {
	return fmt.Sprintf(
		"reconciliation required for transfer %s (id=%d): sender transaction %s (id=%d) committed, receiver leg failed: %v; refund failed: %v",
		e.TransferCode, e.TransferID, e.SenderTxnCode, e.SenderTransactionID, e.ReceiverErr, e.CompensationErr,
	)
}

// Unwrap exposes both underlying causes to errors.Is / errors.As.
func (e *ReconciliationRequiredError) Unwrap() []error {
	return []error{e.ReceiverErr, e.CompensationErr}
}

// IsReconciliationRequired reports whether err carries a *ReconciliationRequiredError.
func IsReconciliationRequired(err error) bool {
	var rec *ReconciliationRequiredError
	return errors.As(err, &rec)
}
