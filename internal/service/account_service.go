// internal/service/account_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
)

// AccountService manages account lifecycle. Balances are only ever changed
// through the BalanceMutator.
type AccountService struct {
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	mutator     *BalanceMutator
	logger      *slog.Logger
}

func NewAccountService(dbExecutor repository.DBExecutor, accountRepo repository.AccountRepository, mutator *BalanceMutator, logger *slog.Logger) *AccountService {
	return &AccountService{
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		mutator:     mutator,
		logger:      logger.With("component", "account_service"),
	}
}

// OpenAccount creates an active account with a zero balance.
func (s *AccountService) OpenAccount(ctx context.Context, ownerRef string) (*domain.Account, error) {
	ownerRef = strings.TrimSpace(ownerRef)
	if ownerRef == "" {
		return nil, fmt.Errorf("open account: owner is required: %w", util.ErrInvalidInput)
	}
	account := domain.NewAccount(ownerRef)
	if err := s.accountRepo.CreateAccount(ctx, s.dbExecutor, account); err != nil {
		return nil, fmt.Errorf("open account: failed to create account: %w", err)
	}
	s.logger.Info("account opened", "account_id", account.ID, "owner_ref", ownerRef)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return account, nil
}

// Deactivate soft-deletes an account. It keeps its balance and history but
// rejects further changes other than refunds.
func (s *AccountService) Deactivate(ctx context.Context, id int64) (*domain.Account, error) {
	var result domain.Account
	err := s.mutator.WithAccountLocked(ctx, id, func(q repository.DBExecutor, account *domain.Account) error {
		result = *account
		if !account.IsActive {
			return nil
		}
		now := time.Now().UTC()
		if err := s.accountRepo.DeactivateAccount(ctx, q, id, now); err != nil {
			return fmt.Errorf("deactivate account %d: %w", id, err)
		}
		result.IsActive = false
		result.DeactivatedAt = &now
		result.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account deactivated", "account_id", id)
	return &result, nil
}
