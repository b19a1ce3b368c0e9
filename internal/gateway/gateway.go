// internal/gateway/gateway.go
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentRequest asks the gateway for a payment intent. OrderID is the
// top-up request code and comes back in every notification.
type PaymentRequest struct {
	OrderID   string          `json:"order_id"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentIntent is the gateway's answer to a PaymentRequest.
type PaymentIntent struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	PayURL    string `json:"pay_url"`
}

// Client creates payment intents.
type Client interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error)
}

// NotificationStatus is the payment status reported by the gateway.
type NotificationStatus string

const (
	NotificationSuccess NotificationStatus = "success"
	NotificationFailed  NotificationStatus = "failed"
	NotificationPending NotificationStatus = "pending"
)

// Notification is an asynchronous payment status update.
type Notification struct {
	OrderID       string             `json:"order_id"`
	PaymentID     string             `json:"payment_id"`
	TransactionID string             `json:"transaction_id"`
	Status        NotificationStatus `json:"status"`
	// Amount, when present, must match the top-up request.
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// NotificationHandler applies a gateway notification to the ledger.
type NotificationHandler interface {
	HandleGatewayNotification(ctx context.Context, n Notification) error
}
