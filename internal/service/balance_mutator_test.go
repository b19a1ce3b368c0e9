// internal/service/balance_mutator_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
	"wallet-ledger/pkg/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockedMutator(accountRepo *MockAccountRepository, txController *MockTxController) *BalanceMutator {
	return NewBalanceMutator(
		new(MockDBBeginner),
		accountRepo,
		NewAccountLocks(8),
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			return txController, nil
		},
		func(tx db.TxController) error {
			return txController.Commit()
		},
		func(tx db.TxController) {
			_ = txController.Rollback()
		},
	)
}

func TestBalanceMutatorApply(t *testing.T) {
	accountID := int64(1)

	t.Run("SuccessfulCredit", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		account := &domain.Account{ID: accountID, Balance: decimal.NewFromInt(500), IsActive: true}
		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(account, nil).Once()
		accountRepo.On("SetAccountBalance", ctx, mock.Anything, accountID,
			mock.MatchedBy(func(b decimal.Decimal) bool { return b.Equal(decimal.NewFromInt(600)) }),
			mock.Anything).Return(nil).Once()
		txController.On("Commit").Return(nil).Once()
		txController.On("Rollback").Return(nil).Maybe()

		before, after, err := mutator.Apply(ctx, accountID, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, before.Equal(decimal.NewFromInt(500)))
		assert.True(t, after.Equal(decimal.NewFromInt(600)))

		accountRepo.AssertExpectations(t)
		txController.AssertExpectations(t)
	})

	t.Run("InsufficientFundsWritesNothing", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		account := &domain.Account{ID: accountID, Balance: decimal.NewFromInt(10000), IsActive: true}
		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(account, nil).Once()
		txController.On("Rollback").Return(nil).Once()

		_, _, err := mutator.Apply(ctx, accountID, decimal.NewFromInt(-15000))
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		rejectedID, ok := util.RejectedAccountID(err)
		assert.True(t, ok)
		assert.Equal(t, accountID, rejectedID)

		accountRepo.AssertNotCalled(t, "SetAccountBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		txController.AssertNotCalled(t, "Commit")
		txController.AssertExpectations(t)
	})

	t.Run("InactiveAccountRejected", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		account := &domain.Account{ID: accountID, Balance: decimal.NewFromInt(100), IsActive: false}
		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(account, nil).Once()
		txController.On("Rollback").Return(nil).Once()

		_, _, err := mutator.Apply(ctx, accountID, decimal.NewFromInt(5))
		assert.ErrorIs(t, err, util.ErrAccountInactive)
		txController.AssertNotCalled(t, "Commit")
	})

	t.Run("AccountNotFound", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(nil, util.ErrNotFound).Once()
		txController.On("Rollback").Return(nil).Once()

		_, _, err := mutator.Apply(ctx, accountID, decimal.NewFromInt(5))
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("HookFailureSkipsCommit", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		account := &domain.Account{ID: accountID, Balance: decimal.NewFromInt(50), IsActive: true}
		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(account, nil).Once()
		accountRepo.On("SetAccountBalance", ctx, mock.Anything, accountID, mock.Anything, mock.Anything).Return(nil).Once()
		txController.On("Rollback").Return(nil).Once()

		hookErr := errors.New("insert failed")
		_, err := mutator.ApplyAll(ctx, []BalanceChangeRequest{{AccountID: accountID, Delta: decimal.NewFromInt(-20)}},
			func(ctx context.Context, q repository.DBExecutor, changes []BalanceChange) error {
				require.Len(t, changes, 1)
				assert.True(t, changes[0].After.Equal(decimal.NewFromInt(30)))
				return hookErr
			})
		assert.ErrorIs(t, err, hookErr)
		txController.AssertNotCalled(t, "Commit")
	})

	t.Run("CompensationReachesInactiveAccount", func(t *testing.T) {
		ctx := context.Background()
		accountRepo := new(MockAccountRepository)
		txController := new(MockTxController)
		mutator := newMockedMutator(accountRepo, txController)

		account := &domain.Account{ID: accountID, Balance: decimal.Zero, IsActive: false}
		accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, accountID).Return(account, nil).Once()
		accountRepo.On("SetAccountBalance", ctx, mock.Anything, accountID, mock.Anything, mock.Anything).Return(nil).Once()
		txController.On("Commit").Return(nil).Once()
		txController.On("Rollback").Return(nil).Maybe()

		changes, err := mutator.ApplyAll(ctx, []BalanceChangeRequest{{AccountID: accountID, Delta: decimal.NewFromInt(9), Compensation: true}}, nil)
		require.NoError(t, err)
		assert.True(t, changes[0].After.Equal(decimal.NewFromInt(9)))
	})
}

func TestBalanceMutatorChainsSameAccount(t *testing.T) {
	ctx := context.Background()
	accountRepo := new(MockAccountRepository)
	txController := new(MockTxController)
	mutator := newMockedMutator(accountRepo, txController)

	account := &domain.Account{ID: 3, Balance: decimal.NewFromInt(100), IsActive: true}
	accountRepo.On("GetAccountByIDForUpdate", ctx, mock.Anything, int64(3)).Return(account, nil).Once()
	accountRepo.On("SetAccountBalance", ctx, mock.Anything, int64(3),
		mock.MatchedBy(func(b decimal.Decimal) bool { return b.Equal(decimal.NewFromInt(70)) }),
		mock.Anything).Return(nil).Once()
	txController.On("Commit").Return(nil).Once()
	txController.On("Rollback").Return(nil).Maybe()

	changes, err := mutator.ApplyAll(ctx, []BalanceChangeRequest{
		{AccountID: 3, Delta: decimal.NewFromInt(-50)},
		{AccountID: 3, Delta: decimal.NewFromInt(20)},
	}, nil)
	require.NoError(t, err)
	assert.True(t, changes[0].Before.Equal(decimal.NewFromInt(100)))
	assert.True(t, changes[0].After.Equal(decimal.NewFromInt(50)))
	assert.True(t, changes[1].Before.Equal(decimal.NewFromInt(50)))
	assert.True(t, changes[1].After.Equal(decimal.NewFromInt(70)))
	accountRepo.AssertExpectations(t)
}

func TestAccountLocksSerializeSameAccount(t *testing.T) {
	locks := NewAccountLocks(4)
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 1 and 5 share a stripe; lock order must not deadlock
			ids := []int64{1, 5}
			if i%2 == 0 {
				ids = []int64{5, 1}
			}
			unlock := locks.Lock(ids...)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, maxInside)
}
