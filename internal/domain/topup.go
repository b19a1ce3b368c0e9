// internal/domain/topup.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopUpCodePrefix prefixes every generated top-up request code. The code is
// also the order id handed to the payment gateway.
const TopUpCodePrefix = "TOP"

// PaymentMethod is how the account holder pays for a top-up.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodWallet       PaymentMethod = "WALLET"
	PaymentMethodGateway      PaymentMethod = "GATEWAY"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodWallet || m == PaymentMethodGateway
}

// TopUpStatus is the status of a top-up request.
type TopUpStatus string

const (
	TopUpStatusPending  TopUpStatus = "PENDING"
	TopUpStatusApproved TopUpStatus = "APPROVED"
	TopUpStatusRejected TopUpStatus = "REJECTED"
)

// IsTerminal reports whether the request has been decided.
func (s TopUpStatus) IsTerminal() bool {
	return s == TopUpStatusApproved || s == TopUpStatusRejected
}

// TopUpRequest is a request to credit an account, approved by an operator or
// confirmed by a gateway callback. The wallet transaction is only created on
// approval.
type TopUpRequest struct {
	ID                   int64           `db:"id" json:"id"`
	Code                 string          `db:"code" json:"code"`
	AccountID            int64           `db:"account_id" json:"account_id"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod        PaymentMethod   `db:"payment_method" json:"payment_method"`
	Status               TopUpStatus     `db:"status" json:"status"`
	ProofURL             *string         `db:"proof_url" json:"proof_url,omitempty"`
	Notes                *string         `db:"notes" json:"notes,omitempty"`
	ProcessedBy          *string         `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt          *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	GatewayOrderID       *string         `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID     *string         `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	GatewayTransactionID *string         `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	PayURL               *string         `db:"pay_url" json:"pay_url,omitempty"`
	TransactionID        *int64          `db:"transaction_id" json:"transaction_id,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// NewTopUpRequest creates a PENDING top-up request.
func NewTopUpRequest(accountID int64, amount decimal.Decimal, method PaymentMethod, proofURL, notes *string) *TopUpRequest {
	now := time.Now().UTC()
	return &TopUpRequest{
		AccountID:     accountID,
		Amount:        amount,
		PaymentMethod: method,
		Status:        TopUpStatusPending,
		ProofURL:      proofURL,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// TopUpResolution is the single decision applied to a pending request.
type TopUpResolution struct {
	Status               TopUpStatus
	ProcessedBy          string
	TransactionID        *int64
	GatewayTransactionID *string
	Notes                *string
}

// Apply copies the resolution onto r.
func (res TopUpResolution) Apply(r *TopUpRequest, at time.Time) {
	r.Status = res.Status
	processedBy := res.ProcessedBy
	r.ProcessedBy = &processedBy
	r.ProcessedAt = &at
	r.UpdatedAt = at
	if res.TransactionID != nil {
		r.TransactionID = res.TransactionID
	}
	if res.GatewayTransactionID != nil {
		r.GatewayTransactionID = res.GatewayTransactionID
	}
	if res.Notes != nil {
		r.Notes = res.Notes
	}
}
