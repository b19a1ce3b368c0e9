// internal/service/transaction_engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/fraud"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
)

// RecordRequest describes one ledger entry to record.
type RecordRequest struct {
	AccountID   int64
	Type        domain.TransactionType
	Amount      decimal.Decimal
	ReferenceID *string
	Description *string
	Metadata    map[string]any
	// Compensation marks a refund issued by the ledger itself. It skips
	// fraud scoring and may credit a deactivated account.
	Compensation bool
}

// TransactionHook runs in the storage transaction that created txns.
// Returning an error rolls back the entries and their balance changes.
type TransactionHook func(ctx context.Context, q repository.DBExecutor, txns []*domain.Transaction) error

// EngineConfig tunes the TransactionEngine.
type EngineConfig struct {
	// CodeMaxAttempts bounds the retries on a code collision.
	CodeMaxAttempts int
	// AuditFailedAttempts writes FAILED/PENDING records for rejected attempts.
	AuditFailedAttempts bool
	// FraudReviewAmount makes credits at or above it go through fraud scoring too.
	FraudReviewAmount decimal.Decimal
}

// AuditReport compares an account balance with its ledger.
type AuditReport struct {
	AccountID           int64           `json:"account_id"`
	Balance             decimal.Decimal `json:"balance"`
	LedgerBalance       decimal.Decimal `json:"ledger_balance"`
	LatestTransactionID *int64          `json:"latest_transaction_id,omitempty"`
	Consistent          bool            `json:"consistent"`
}

// TransactionEngine records ledger entries. Every SUCCESS entry is written
// in the same storage transaction as the balance change it describes.
type TransactionEngine struct {
	dbExecutor      repository.DBExecutor
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	mutator         *BalanceMutator
	scorer          fraud.Scorer
	newCode         domain.CodeGenerator
	cfg             EngineConfig
	metrics         metrics.Collector
	logger          *slog.Logger
}

// NewTransactionEngine creates a TransactionEngine. A nil scorer allows
// everything; a nil newCode uses domain.GenerateCode.
func NewTransactionEngine(
	dbExecutor repository.DBExecutor,
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	mutator *BalanceMutator,
	scorer fraud.Scorer,
	newCode domain.CodeGenerator,
	cfg EngineConfig,
	collector metrics.Collector,
	logger *slog.Logger,
) *TransactionEngine {
	if scorer == nil {
		scorer = fraud.NoopScorer{}
	}
	if newCode == nil {
		newCode = domain.GenerateCode
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &TransactionEngine{
		dbExecutor:      dbExecutor,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		mutator:         mutator,
		scorer:          scorer,
		newCode:         newCode,
		cfg:             cfg,
		metrics:         collector,
		logger:          logger.With("component", "transaction_engine"),
	}
}

// Record applies one entry to its account and persists it as SUCCESS.
func (e *TransactionEngine) Record(ctx context.Context, req RecordRequest) (*domain.Transaction, error) {
	txns, err := e.RecordAll(ctx, []RecordRequest{req}, nil)
	if err != nil {
		return nil, err
	}
	return txns[0], nil
}

// RecordAll applies several entries and then runs then, all in one storage
// transaction. Either every entry is recorded or none is.
func (e *TransactionEngine) RecordAll(ctx context.Context, reqs []RecordRequest, then TransactionHook) ([]*domain.Transaction, error) {
	start := time.Now()
	if len(reqs) == 0 {
		return nil, fmt.Errorf("record: no entries: %w", util.ErrInvalidInput)
	}
	for _, req := range reqs {
		if !req.Type.IsValid() {
			return nil, fmt.Errorf("record: unknown transaction type %q: %w", req.Type, util.ErrInvalidInput)
		}
		if !domain.ValidAmount(req.Amount) {
			return nil, util.ErrInvalidAmount
		}
	}

	metadata := make([]map[string]any, len(reqs))
	for i, req := range reqs {
		metadata[i] = req.Metadata
		action, err := e.screen(ctx, req)
		if err != nil {
			e.recordAttempt(ctx, req, err)
			e.observe(reqs, err, start)
			return nil, err
		}
		if action == fraud.ActionVerify || action == fraud.ActionReview {
			metadata[i] = withMetadata(req.Metadata, "fraud_action", string(action))
		}
	}

	changes := make([]BalanceChangeRequest, len(reqs))
	for i, req := range reqs {
		changes[i] = BalanceChangeRequest{
			AccountID:    req.AccountID,
			Delta:        req.Type.SignedDelta(req.Amount),
			Compensation: req.Compensation,
		}
	}

	var recorded []*domain.Transaction
	_, err := e.mutator.ApplyAll(ctx, changes, func(ctx context.Context, q repository.DBExecutor, applied []BalanceChange) error {
		recorded = make([]*domain.Transaction, len(reqs))
		for i, req := range reqs {
			txn := domain.NewTransaction(req.AccountID, req.Type, req.Amount, applied[i].Before, applied[i].After, req.ReferenceID, req.Description, metadata[i])
			if err := e.insert(ctx, q, txn); err != nil {
				return fmt.Errorf("record: failed to create %s transaction: %w", req.Type, err)
			}
			recorded[i] = txn
		}
		if then != nil {
			return then(ctx, q, recorded)
		}
		return nil
	})
	if err != nil {
		rejectedID, byAccount := util.RejectedAccountID(err)
		for _, req := range reqs {
			if !req.Type.IsDebit() || (byAccount && req.AccountID != rejectedID) {
				continue
			}
			e.recordAttempt(ctx, req, err)
		}
		e.observe(reqs, err, start)
		return nil, err
	}

	e.observe(reqs, nil, start)
	return recorded, nil
}

// screen runs fraud scoring for debits and for any amount at or above the
// review threshold.
func (e *TransactionEngine) screen(ctx context.Context, req RecordRequest) (fraud.Action, error) {
	if req.Compensation {
		return fraud.ActionAllow, nil
	}
	large := e.cfg.FraudReviewAmount.IsPositive() && req.Amount.GreaterThanOrEqual(e.cfg.FraudReviewAmount)
	if !req.Type.IsDebit() && !large {
		return fraud.ActionAllow, nil
	}

	action, err := e.scorer.Score(ctx, fraud.Assessment{AccountID: req.AccountID, Type: req.Type, Amount: req.Amount})
	if err != nil {
		if util.IsExternalServiceError(err) {
			return "", err
		}
		return "", fmt.Errorf("record: fraud scoring failed: %w", err)
	}
	if action == fraud.ActionBlock {
		e.logger.Warn("transaction blocked by fraud screening",
			"account_id", req.AccountID, "type", req.Type, "amount", req.Amount.String())
		return action, util.ErrTransactionBlocked
	}
	return action, nil
}

func (e *TransactionEngine) insert(ctx context.Context, q repository.DBExecutor, txn *domain.Transaction) error {
	return insertWithUniqueCode(e.newCode, domain.TransactionCodePrefix, e.cfg.CodeMaxAttempts, func(code string) error {
		txn.Code = code
		return e.transactionRepo.CreateTransaction(ctx, q, txn)
	})
}

// recordAttempt writes a FAILED (rejected) or PENDING (outcome unknown)
// entry when failed-attempt auditing is on. The balance is untouched.
func (e *TransactionEngine) recordAttempt(ctx context.Context, req RecordRequest, cause error) {
	if !e.cfg.AuditFailedAttempts {
		return
	}

	var status domain.TransactionStatus
	switch {
	case util.IsExternalServiceError(cause):
		status = domain.TransactionStatusPending
	case errors.Is(cause, util.ErrInsufficientFunds),
		errors.Is(cause, util.ErrTransactionBlocked),
		errors.Is(cause, util.ErrAccountInactive):
		status = domain.TransactionStatusFailed
	default:
		return
	}

	account, err := e.accountRepo.GetAccountByID(ctx, e.dbExecutor, req.AccountID)
	if err != nil {
		e.logger.Error("failed to load account for attempt record", "account_id", req.AccountID, "error", err)
		return
	}
	txn := domain.NewAttemptTransaction(req.AccountID, req.Type, req.Amount, account.Balance, status,
		req.ReferenceID, req.Description, withMetadata(req.Metadata, "failure_reason", cause.Error()))
	if err := e.insert(ctx, e.dbExecutor, txn); err != nil {
		e.logger.Error("failed to write attempt record", "account_id", req.AccountID, "status", status, "error", err)
		return
	}
	e.logger.Info("recorded rejected attempt", "transaction_code", txn.Code, "status", status, "reason", cause.Error())
}

func (e *TransactionEngine) observe(reqs []RecordRequest, err error, start time.Time) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, util.ErrInsufficientFunds), errors.Is(err, util.ErrTransactionBlocked),
		errors.Is(err, util.ErrAccountInactive), errors.Is(err, util.ErrInvalidAmount):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	elapsed := time.Since(start)
	for _, req := range reqs {
		e.metrics.RecordTransaction(string(req.Type), outcome, elapsed)
	}
}

// CancelPending voids a PENDING entry. It never touches balances.
func (e *TransactionEngine) CancelPending(ctx context.Context, id int64) (*domain.Transaction, error) {
	err := e.transactionRepo.UpdateTransactionStatus(ctx, e.dbExecutor, id,
		domain.TransactionStatusPending, domain.TransactionStatusCancelled, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("cancel transaction %d: %w", id, err)
	}
	return e.GetByID(ctx, id)
}

// ListStalePending returns PENDING entries older than age.
func (e *TransactionEngine) ListStalePending(ctx context.Context, age time.Duration, limit int) ([]domain.Transaction, error) {
	txns, err := e.transactionRepo.ListTransactionsByStatus(ctx, e.dbExecutor, domain.TransactionStatusPending, time.Now().UTC().Add(-age), limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending transactions: %w", err)
	}
	return txns, nil
}

// History returns a page of an account's entries and the total count.
func (e *TransactionEngine) History(ctx context.Context, accountID int64, filter repository.TransactionFilter) ([]domain.Transaction, int64, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, fmt.Errorf("history: negative limit or offset: %w", util.ErrInvalidInput)
	}
	if _, err := e.accountRepo.GetAccountByID(ctx, e.dbExecutor, accountID); err != nil {
		return nil, 0, fmt.Errorf("history: failed to check account %d: %w", accountID, err)
	}
	txns, total, err := e.transactionRepo.ListTransactionsByAccount(ctx, e.dbExecutor, accountID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("history: failed to retrieve transactions: %w", err)
	}
	return txns, total, nil
}

func (e *TransactionEngine) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	txn, err := e.transactionRepo.GetTransactionByID(ctx, e.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return txn, nil
}

func (e *TransactionEngine) GetByCode(ctx context.Context, code string) (*domain.Transaction, error) {
	txn, err := e.transactionRepo.GetTransactionByCode(ctx, e.dbExecutor, code)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", code, err)
	}
	return txn, nil
}

// Audit checks that the account balance equals the balance_after of its
// latest SUCCESS entry, or zero when it has none.
func (e *TransactionEngine) Audit(ctx context.Context, accountID int64) (*AuditReport, error) {
	var report *AuditReport
	err := e.mutator.WithAccountLocked(ctx, accountID, func(q repository.DBExecutor, account *domain.Account) error {
		report = &AuditReport{AccountID: accountID, Balance: account.Balance, LedgerBalance: decimal.Zero}
		latest, err := e.transactionRepo.GetLatestSuccessfulTransaction(ctx, q, accountID)
		switch {
		case err == nil:
			report.LedgerBalance = latest.BalanceAfter
			id := latest.ID
			report.LatestTransactionID = &id
		case errors.Is(err, util.ErrNotFound):
		default:
			return fmt.Errorf("audit: failed to get latest transaction: %w", err)
		}
		report.Consistent = report.Balance.Equal(report.LedgerBalance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		e.logger.Error("ledger out of balance", "account_id", accountID,
			"balance", report.Balance.String(), "ledger_balance", report.LedgerBalance.String())
	}
	return report, nil
}

// withMetadata returns a copy of m with key set.
func withMetadata(m map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}
