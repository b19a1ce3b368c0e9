// internal/fraud/scorer.go
package fraud

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/resilience"

	"github.com/shopspring/decimal"
)

// Action is the outcome of scoring a transaction attempt.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionVerify Action = "verify"
	ActionReview Action = "review"
	ActionBlock  Action = "block"
)

// Assessment describes the attempt being scored.
type Assessment struct {
	AccountID int64
	Type      domain.TransactionType
	Amount    decimal.Decimal
}

// Scorer decides whether a transaction attempt may proceed.
type Scorer interface {
	Score(ctx context.Context, a Assessment) (Action, error)
}

// NoopScorer allows everything.
type NoopScorer struct{}

func (NoopScorer) Score(context.Context, Assessment) (Action, error) { return ActionAllow, nil }

// VelocityCounter counts events per key inside a fixed window.
type VelocityCounter interface {
	// Incr adds one event for key and returns the count in the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Thresholds configure the VelocityScorer. Zero amounts disable the rule.
type Thresholds struct {
	VerifyAmount decimal.Decimal
	ReviewAmount decimal.Decimal
	BlockAmount  decimal.Decimal
	Window       time.Duration
	MaxPerWindow int64
}

// VelocityScorer blocks accounts that exceed MaxPerWindow scored attempts
// per Window and grades single attempts by amount.
type VelocityScorer struct {
	counter    VelocityCounter
	thresholds Thresholds
}

// NewVelocityScorer creates a VelocityScorer.
func NewVelocityScorer(counter VelocityCounter, thresholds Thresholds) *VelocityScorer {
	if thresholds.Window <= 0 {
		thresholds.Window = time.Minute
	}
	return &VelocityScorer{counter: counter, thresholds: thresholds}
}

func (s *VelocityScorer) Score(ctx context.Context, a Assessment) (Action, error) {
	th := s.thresholds
	if th.BlockAmount.IsPositive() && a.Amount.GreaterThanOrEqual(th.BlockAmount) {
		return ActionBlock, nil
	}

	if th.MaxPerWindow > 0 {
		count, err := s.counter.Incr(ctx, velocityKey(a.AccountID), th.Window)
		if err != nil {
			return "", fmt.Errorf("fraud: failed to count attempts for account %d: %w", a.AccountID, err)
		}
		if count > th.MaxPerWindow {
			return ActionBlock, nil
		}
	}

	switch {
	case th.ReviewAmount.IsPositive() && a.Amount.GreaterThanOrEqual(th.ReviewAmount):
		return ActionReview, nil
	case th.VerifyAmount.IsPositive() && a.Amount.GreaterThanOrEqual(th.VerifyAmount):
		return ActionVerify, nil
	}
	return ActionAllow, nil
}

func velocityKey(accountID int64) string {
	return fmt.Sprintf("velocity:%d", accountID)
}

// GuardedScorer runs a Scorer behind a resilience.Breaker so an unreachable
// scoring backend surfaces as *util.ExternalServiceError.
type GuardedScorer struct {
	inner   Scorer
	breaker *resilience.Breaker
}

// NewGuardedScorer wraps inner with breaker.
func NewGuardedScorer(inner Scorer, breaker *resilience.Breaker) *GuardedScorer {
	return &GuardedScorer{inner: inner, breaker: breaker}
}

func (g *GuardedScorer) Score(ctx context.Context, a Assessment) (Action, error) {
	result, err := g.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return g.inner.Score(ctx, a)
	})
	if err != nil {
		return "", err
	}
	return result.(Action), nil
}
