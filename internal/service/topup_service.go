// internal/service/topup_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/gateway"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// GatewayProcessor is recorded as processed_by for gateway-resolved requests.
const GatewayProcessor = "gateway"

// TopUpService turns top-up requests into TOPUP_MANUAL or TOPUP_GATEWAY
// ledger entries. A request produces at most one entry.
type TopUpService struct {
	dbExecutor   repository.DBExecutor
	accountRepo  repository.AccountRepository
	topUpRepo    repository.TopUpRepository
	engine       *TransactionEngine
	gateway      gateway.Client
	newCode      domain.CodeGenerator
	codeAttempts int
	metrics      metrics.Collector
	logger       *slog.Logger
}

// NewTopUpService creates a TopUpService. A nil gatewayClient disables the
// GATEWAY payment method.
func NewTopUpService(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	topUpRepo repository.TopUpRepository,
	engine *TransactionEngine,
	gatewayClient gateway.Client,
	newCode domain.CodeGenerator,
	codeAttempts int,
	collector metrics.Collector,
	logger *slog.Logger,
) *TopUpService {
	if newCode == nil {
		newCode = domain.GenerateCode
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &TopUpService{
		dbExecutor:   dbExecutor,
		accountRepo:  accountRepo,
		topUpRepo:    topUpRepo,
		engine:       engine,
		gateway:      gatewayClient,
		newCode:      newCode,
		codeAttempts: codeAttempts,
		metrics:      collector,
		logger:       logger.With("component", "topup_service"),
	}
}

// Submit creates a PENDING request. For the GATEWAY method it also asks the
// gateway for a payment intent; if the gateway is unavailable the request
// is returned together with the error and stays PENDING. A definitive
// refusal from the gateway resolves the request REJECTED.
func (s *TopUpService) Submit(ctx context.Context, accountID int64, amount decimal.Decimal, method domain.PaymentMethod, proofURL, notes *string) (*domain.TopUpRequest, error) {
	if !domain.ValidAmount(amount) {
		return nil, util.ErrInvalidAmount
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("submit top-up: unknown payment method %q: %w", method, util.ErrInvalidInput)
	}
	if method == domain.PaymentMethodGateway && s.gateway == nil {
		return nil, fmt.Errorf("submit top-up: payment gateway not configured: %w", util.ErrInvalidInput)
	}

	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("submit top-up: failed to get account %d: %w", accountID, err)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("submit top-up: account %d: %w", accountID, util.ErrAccountInactive)
	}

	request := domain.NewTopUpRequest(accountID, amount, method, proofURL, notes)
	err = insertWithUniqueCode(s.newCode, domain.TopUpCodePrefix, s.codeAttempts, func(code string) error {
		request.Code = code
		if method == domain.PaymentMethodGateway {
			orderID := code
			request.GatewayOrderID = &orderID
		}
		return s.topUpRepo.CreateTopUpRequest(ctx, s.dbExecutor, request)
	})
	if err != nil {
		return nil, fmt.Errorf("submit top-up: failed to create request: %w", err)
	}
	s.logger.Info("top-up request submitted", "topup_code", request.Code, "account_id", accountID, "method", method, "amount", amount.String())

	if method != domain.PaymentMethodGateway {
		return request, nil
	}

	intent, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{OrderID: request.Code, AccountID: accountID, Amount: amount})
	if err != nil {
		if util.IsExternalServiceError(err) {
			s.logger.Warn("gateway payment not created, top-up left pending", "topup_code", request.Code, "error", err)
			return request, fmt.Errorf("submit top-up %s: %w", request.Code, err)
		}
		reason := "gateway refused payment: " + err.Error()
		s.logger.Warn("gateway refused payment, top-up rejected", "topup_code", request.Code, "error", err)
		return s.resolve(ctx, request.ID, domain.TopUpResolution{Status: domain.TopUpStatusRejected, ProcessedBy: GatewayProcessor, Notes: &reason})
	}
	if err := s.topUpRepo.SetGatewayPayment(ctx, s.dbExecutor, request.ID, intent.PaymentID, intent.PayURL); err != nil {
		return request, fmt.Errorf("submit top-up %s: failed to store gateway payment: %w", request.Code, err)
	}
	request.GatewayPaymentID = &intent.PaymentID
	request.PayURL = &intent.PayURL

	if gateway.NotificationStatus(intent.Status) == gateway.NotificationFailed {
		reason := "gateway refused payment"
		return s.resolve(ctx, request.ID, domain.TopUpResolution{Status: domain.TopUpStatusRejected, ProcessedBy: GatewayProcessor, Notes: &reason})
	}
	return request, nil
}

// Approve credits the account with a TOPUP_MANUAL entry and marks the
// request APPROVED, in one storage transaction.
func (s *TopUpService) Approve(ctx context.Context, id int64, processor string) (*domain.TopUpRequest, error) {
	request, err := s.topUpRepo.GetTopUpRequestByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("approve top-up %d: %w", id, err)
	}
	if request.Status != domain.TopUpStatusPending {
		return nil, fmt.Errorf("approve top-up %s: request is %s: %w", request.Code, request.Status, util.ErrStatusConflict)
	}
	if err := s.credit(ctx, request, domain.TransactionTypeTopUpManual, domain.TopUpResolution{
		Status:      domain.TopUpStatusApproved,
		ProcessedBy: processor,
	}); err != nil {
		return nil, fmt.Errorf("approve top-up %s: %w", request.Code, err)
	}
	s.logger.Info("top-up approved", "topup_code", request.Code, "processed_by", processor)
	return s.Get(ctx, id)
}

// Reject marks a PENDING request REJECTED. No ledger entry is written.
func (s *TopUpService) Reject(ctx context.Context, id int64, processor, reason string) (*domain.TopUpRequest, error) {
	res := domain.TopUpResolution{Status: domain.TopUpStatusRejected, ProcessedBy: processor}
	if reason != "" {
		res.Notes = &reason
	}
	request, err := s.resolve(ctx, id, res)
	if err != nil {
		return nil, fmt.Errorf("reject top-up %d: %w", id, err)
	}
	s.logger.Info("top-up rejected", "topup_code", request.Code, "processed_by", processor)
	return request, nil
}

// HandleGatewayNotification applies a gateway status update. The first
// terminal notification for an order wins; later ones are no-ops.
func (s *TopUpService) HandleGatewayNotification(ctx context.Context, n gateway.Notification) error {
	outcome, err := s.handleNotification(ctx, n)
	s.metrics.RecordGatewayNotification(string(n.Status), outcome)
	return err
}

func (s *TopUpService) handleNotification(ctx context.Context, n gateway.Notification) (string, error) {
	if n.OrderID == "" {
		return metrics.OutcomeRejected, fmt.Errorf("gateway notification: missing order id: %w", util.ErrInvalidInput)
	}
	request, err := s.topUpRepo.GetTopUpRequestByGatewayOrderID(ctx, s.dbExecutor, n.OrderID)
	if err != nil {
		return metrics.OutcomeRejected, fmt.Errorf("gateway notification for order %s: %w", n.OrderID, err)
	}
	if n.PaymentID != "" && request.GatewayPaymentID != nil && *request.GatewayPaymentID != n.PaymentID {
		return metrics.OutcomeRejected, fmt.Errorf("gateway notification for order %s: payment id %s does not match: %w", n.OrderID, n.PaymentID, util.ErrInvalidInput)
	}
	if n.Amount != nil && !n.Amount.Equal(request.Amount) {
		return metrics.OutcomeRejected, fmt.Errorf("gateway notification for order %s: amount %s does not match %s: %w",
			n.OrderID, n.Amount.String(), request.Amount.String(), util.ErrInvalidInput)
	}

	switch n.Status {
	case gateway.NotificationPending:
		return metrics.OutcomeIgnored, nil
	case gateway.NotificationSuccess, gateway.NotificationFailed:
	default:
		return metrics.OutcomeRejected, fmt.Errorf("gateway notification for order %s: unknown status %q: %w", n.OrderID, n.Status, util.ErrInvalidInput)
	}

	if request.Status.IsTerminal() {
		s.logger.Info("duplicate gateway notification ignored", "order_id", n.OrderID, "status", n.Status, "request_status", request.Status)
		return metrics.OutcomeIgnored, nil
	}

	var gatewayTxnID *string
	if n.TransactionID != "" {
		gatewayTxnID = &n.TransactionID
	}

	if n.Status == gateway.NotificationFailed {
		reason := "gateway reported payment failed"
		_, err := s.resolve(ctx, request.ID, domain.TopUpResolution{
			Status:               domain.TopUpStatusRejected,
			ProcessedBy:          GatewayProcessor,
			GatewayTransactionID: gatewayTxnID,
			Notes:                &reason,
		})
		if errors.Is(err, util.ErrStatusConflict) {
			return metrics.OutcomeIgnored, nil
		}
		if err != nil {
			return metrics.OutcomeError, fmt.Errorf("gateway notification for order %s: %w", n.OrderID, err)
		}
		s.logger.Info("gateway top-up rejected", "order_id", n.OrderID)
		return metrics.OutcomeSuccess, nil
	}

	err = s.credit(ctx, request, domain.TransactionTypeTopUpGateway, domain.TopUpResolution{
		Status:               domain.TopUpStatusApproved,
		ProcessedBy:          GatewayProcessor,
		GatewayTransactionID: gatewayTxnID,
	})
	if errors.Is(err, util.ErrStatusConflict) {
		s.logger.Info("concurrent gateway notification ignored", "order_id", n.OrderID)
		return metrics.OutcomeIgnored, nil
	}
	if err != nil {
		return metrics.OutcomeError, fmt.Errorf("gateway notification for order %s: %w", n.OrderID, err)
	}
	s.logger.Info("gateway top-up credited", "order_id", n.OrderID, "account_id", request.AccountID, "amount", request.Amount.String())
	return metrics.OutcomeSuccess, nil
}

// credit records the top-up entry and resolves the request in the same
// storage transaction. A request that is no longer PENDING rolls the entry
// back with util.ErrStatusConflict.
func (s *TopUpService) credit(ctx context.Context, request *domain.TopUpRequest, txType domain.TransactionType, res domain.TopUpResolution) error {
	ref := request.Code
	_, err := s.engine.RecordAll(ctx, []RecordRequest{{
		AccountID:   request.AccountID,
		Type:        txType,
		Amount:      request.Amount,
		ReferenceID: &ref,
		Description: request.Notes,
		Metadata:    map[string]any{"payment_method": string(request.PaymentMethod)},
	}}, func(ctx context.Context, q repository.DBExecutor, txns []*domain.Transaction) error {
		res.TransactionID = &txns[0].ID
		return s.topUpRepo.ResolveTopUpRequest(ctx, q, request.ID, domain.TopUpStatusPending, res)
	})
	return err
}

func (s *TopUpService) resolve(ctx context.Context, id int64, res domain.TopUpResolution) (*domain.TopUpRequest, error) {
	if err := s.topUpRepo.ResolveTopUpRequest(ctx, s.dbExecutor, id, domain.TopUpStatusPending, res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns a top-up request by id.
func (s *TopUpService) Get(ctx context.Context, id int64) (*domain.TopUpRequest, error) {
	request, err := s.topUpRepo.GetTopUpRequestByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get top-up %d: %w", id, err)
	}
	return request, nil
}

// ListStalePending returns requests still PENDING after age.
func (s *TopUpService) ListStalePending(ctx context.Context, age time.Duration, limit int) ([]domain.TopUpRequest, error) {
	requests, err := s.topUpRepo.ListTopUpRequestsByStatus(ctx, s.dbExecutor, domain.TopUpStatusPending, time.Now().UTC().Add(-age), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale top-ups: %w", err)
	}
	return requests, nil
}
