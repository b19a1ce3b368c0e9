// internal/service/account_service_test.go
package service

import (
	"context"
	"testing"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOpenAccount(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{})

	account, err := l.accounts.OpenAccount(ctx, "  merchant-42 ")
	require.NoError(t, err)
	assert.NotZero(t, account.ID)
	assert.Equal(t, "merchant-42", account.OwnerRef)
	assert.True(t, account.IsActive)
	assert.True(t, account.Balance.IsZero())

	_, err = l.accounts.OpenAccount(ctx, " ")
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	_, err = l.accounts.GetAccount(ctx, 31337)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestDeactivateAccount(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, ledgerOptions{})
	account := l.openFunded(t, "owner", 800)

	deactivated, err := l.accounts.Deactivate(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
	assert.NotNil(t, deactivated.DeactivatedAt)
	assert.True(t, deactivated.Balance.Equal(decimal.NewFromInt(800)))

	again, err := l.accounts.Deactivate(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, deactivated.DeactivatedAt.Unix(), again.DeactivatedAt.Unix())

	for _, txType := range []domain.TransactionType{domain.TransactionTypePPOBPayment, domain.TransactionTypeTopUpManual} {
		_, err = l.engine.Record(ctx, RecordRequest{AccountID: account.ID, Type: txType, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, util.ErrAccountInactive)
	}
	assert.True(t, l.balance(t, account.ID).Equal(decimal.NewFromInt(800)))

	_, err = l.accounts.Deactivate(ctx, 5150)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestDeactivateUsesLockedTransaction(t *testing.T) {
	ctx := context.Background()
	accountRepo := new(MockAccountRepository)
	txController := new(MockTxController)
	mutator := newMockedMutator(accountRepo, txController)
	service := NewAccountService(new(MockDBExecutor), accountRepo, mutator, discardLogger())

	account := &domain.Account{ID: 9, Balance: decimal.NewFromInt(3), IsActive: true}
	accountRepo.On("GetAccountByIDForUpdate", ctx, txController, int64(9)).Return(account, nil).Once()
	accountRepo.On("DeactivateAccount", ctx, txController, int64(9), mock.Anything).Return(nil).Once()
	txController.On("Commit").Return(nil).Once()
	txController.On("Rollback").Return(nil).Maybe()

	got, err := service.Deactivate(ctx, 9)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	accountRepo.AssertExpectations(t)
	txController.AssertExpectations(t)
}
