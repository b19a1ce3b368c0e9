// internal/service/balance_mutator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
	"wallet-ledger/pkg/db"

	"github.com/shopspring/decimal"
)

// BalanceChangeRequest is one signed change to an account balance.
type BalanceChangeRequest struct {
	AccountID int64
	Delta     decimal.Decimal
	// Compensation lets the change reach a deactivated account.
	Compensation bool
}

// BalanceChange is an applied change with the balances around it.
type BalanceChange struct {
	AccountID int64
	Before    decimal.Decimal
	After     decimal.Decimal
}

// ApplyHook runs inside the storage transaction of a balance change, after
// the new balances are written. Returning an error rolls everything back.
type ApplyHook func(ctx context.Context, q repository.DBExecutor, changes []BalanceChange) error

// BalanceMutator is the only writer of account balances.
type BalanceMutator struct {
	dbBeginner  db.DBTxBeginner
	accountRepo repository.AccountRepository
	locks       *AccountLocks
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
}

// NewBalanceMutator creates a BalanceMutator.
func NewBalanceMutator(
	dbBeginner db.DBTxBeginner,
	accountRepo repository.AccountRepository,
	locks *AccountLocks,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) *BalanceMutator {
	if locks == nil {
		locks = NewAccountLocks(0)
	}
	return &BalanceMutator{
		dbBeginner:  dbBeginner,
		accountRepo: accountRepo,
		locks:       locks,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
	}
}

// Apply adds signedAmount to the balance of accountID and returns the
// balances before and after.
func (m *BalanceMutator) Apply(ctx context.Context, accountID int64, signedAmount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	changes, err := m.ApplyAll(ctx, []BalanceChangeRequest{{AccountID: accountID, Delta: signedAmount}}, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return changes[0].Before, changes[0].After, nil
}

// ApplyAll applies every request in order within one storage transaction.
// Requests against the same account chain: each sees the balance left by
// the previous one. If any resulting balance is negative nothing is written
// and util.ErrInsufficientFunds is returned. Rejections caused by an
// account's state carry a *util.AccountRejectedError naming it.
func (m *BalanceMutator) ApplyAll(ctx context.Context, reqs []BalanceChangeRequest, then ApplyHook) ([]BalanceChange, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("apply balance: no changes requested: %w", util.ErrInvalidInput)
	}

	ids := distinctAccountIDs(reqs)
	unlock := m.locks.Lock(ids...)
	defer unlock()

	txController, err := m.beginTx(ctx, m.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("apply balance: failed to begin transaction: %w", err)
	}
	defer m.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("apply balance: transaction controller does not implement DBExecutor")
	}

	accounts := make(map[int64]*domain.Account, len(ids))
	for _, id := range ids {
		account, err := m.accountRepo.GetAccountByIDForUpdate(ctx, txExecutor, id)
		if err != nil {
			return nil, fmt.Errorf("apply balance: failed to get account %d: %w", id, err)
		}
		accounts[id] = account
	}

	running := make(map[int64]decimal.Decimal, len(ids))
	for id, account := range accounts {
		running[id] = account.Balance
	}

	changes := make([]BalanceChange, len(reqs))
	for i, req := range reqs {
		account := accounts[req.AccountID]
		if !account.IsActive && !req.Compensation {
			return nil, fmt.Errorf("apply balance: %w", &util.AccountRejectedError{AccountID: req.AccountID, Err: util.ErrAccountInactive})
		}
		before := running[req.AccountID]
		after := before.Add(req.Delta)
		if after.IsNegative() {
			return nil, fmt.Errorf("apply balance: %w", &util.AccountRejectedError{
				AccountID: req.AccountID,
				Err: fmt.Errorf("has %s, needs %s: %w",
					before.StringFixed(2), req.Delta.Neg().StringFixed(2), util.ErrInsufficientFunds),
			})
		}
		running[req.AccountID] = after
		changes[i] = BalanceChange{AccountID: req.AccountID, Before: before, After: after}
	}

	now := time.Now().UTC()
	for _, id := range ids {
		if running[id].Equal(accounts[id].Balance) {
			continue
		}
		if err := m.accountRepo.SetAccountBalance(ctx, txExecutor, id, running[id], now); err != nil {
			return nil, fmt.Errorf("apply balance: failed to write balance of account %d: %w", id, err)
		}
	}

	if then != nil {
		if err := then(ctx, txExecutor, changes); err != nil {
			return nil, err
		}
	}

	if err := m.commitTx(txController); err != nil {
		return nil, fmt.Errorf("apply balance: failed to commit transaction: %w", err)
	}
	return changes, nil
}

// WithAccountLocked runs fn with the account locked as if for a mutation,
// inside one storage transaction that commits when fn succeeds. Used for
// consistent reads such as audits and for status changes that must not
// interleave with a balance change.
func (m *BalanceMutator) WithAccountLocked(ctx context.Context, accountID int64, fn func(q repository.DBExecutor, account *domain.Account) error) error {
	unlock := m.locks.Lock(accountID)
	defer unlock()

	txController, err := m.beginTx(ctx, m.dbBeginner)
	if err != nil {
		return fmt.Errorf("lock account: failed to begin transaction: %w", err)
	}
	defer m.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return errors.New("lock account: transaction controller does not implement DBExecutor")
	}

	account, err := m.accountRepo.GetAccountByIDForUpdate(ctx, txExecutor, accountID)
	if err != nil {
		return fmt.Errorf("lock account: failed to get account %d: %w", accountID, err)
	}
	if err := fn(txExecutor, account); err != nil {
		return err
	}
	if err := m.commitTx(txController); err != nil {
		return fmt.Errorf("lock account: failed to commit transaction: %w", err)
	}
	return nil
}

func distinctAccountIDs(reqs []BalanceChangeRequest) []int64 {
	seen := make(map[int64]struct{}, len(reqs))
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.AccountID]; ok {
			continue
		}
		seen[r.AccountID] = struct{}{}
		ids = append(ids, r.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
