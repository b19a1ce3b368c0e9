// internal/service/reservation_manager.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet-ledger/internal/catalog"
	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
)

// ReservationManager holds stock for in-flight purchases. It never changes
// the catalog stock; it only limits how much of it concurrent holders claim.
type ReservationManager struct {
	store      repository.ReservationRepository
	catalog    catalog.StockCatalog
	defaultTTL time.Duration
	now        func() time.Time
	metrics    metrics.Collector
	logger     *slog.Logger
}

// NewReservationManager creates a ReservationManager. now may be nil.
func NewReservationManager(
	store repository.ReservationRepository,
	stockCatalog catalog.StockCatalog,
	defaultTTL time.Duration,
	now func() time.Time,
	collector metrics.Collector,
	logger *slog.Logger,
) *ReservationManager {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &ReservationManager{
		store:      store,
		catalog:    stockCatalog,
		defaultTTL: defaultTTL,
		now:        now,
		metrics:    collector,
		logger:     logger.With("component", "reservation_manager"),
	}
}

// Reserve claims quantity units of productID for holderID until ttl passes.
// A zero ttl uses the default. It fails with util.ErrNoStockAvailable when
// the stock minus the active claims cannot cover quantity.
func (m *ReservationManager) Reserve(ctx context.Context, productID, quantity int64, holderID string, ttl time.Duration) (*domain.StockReservation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("reserve: quantity must be positive: %w", util.ErrInvalidInput)
	}
	if holderID == "" {
		return nil, fmt.Errorf("reserve: holder is required: %w", util.ErrInvalidInput)
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	stock, err := m.catalog.AvailableStock(ctx, productID)
	if err != nil {
		m.metrics.RecordReservation("reserve", metrics.OutcomeError)
		return nil, fmt.Errorf("reserve: failed to read stock of product %d: %w", productID, err)
	}

	reservation := domain.NewStockReservation(productID, quantity, holderID, m.now(), ttl)
	if err := m.store.Reserve(ctx, reservation, stock); err != nil {
		if errors.Is(err, util.ErrNoStockAvailable) {
			m.metrics.RecordReservation("reserve", metrics.OutcomeRejected)
			return nil, fmt.Errorf("reserve %d of product %d: %w", quantity, productID, err)
		}
		m.metrics.RecordReservation("reserve", metrics.OutcomeError)
		return nil, fmt.Errorf("reserve: %w", err)
	}

	m.metrics.RecordReservation("reserve", metrics.OutcomeSuccess)
	m.logger.Debug("stock reserved", "reservation_id", reservation.ID, "product_id", productID, "quantity", quantity, "expires_at", reservation.ExpiresAt)
	return reservation, nil
}

// Release frees a reservation. Releasing one that is already inactive is a
// no-op; an unknown id returns util.ErrNotFound.
func (m *ReservationManager) Release(ctx context.Context, id string) error {
	released, err := m.store.Release(ctx, id, m.now())
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, util.ErrNotFound) {
			outcome = metrics.OutcomeRejected
		}
		m.metrics.RecordReservation("release", outcome)
		return fmt.Errorf("release reservation %s: %w", id, err)
	}
	if !released {
		m.metrics.RecordReservation("release", metrics.OutcomeIgnored)
		return nil
	}
	m.metrics.RecordReservation("release", metrics.OutcomeSuccess)
	return nil
}

// SweepExpired deactivates every reservation past its expiry and returns
// how many it deactivated.
func (m *ReservationManager) SweepExpired(ctx context.Context) (int64, error) {
	start := time.Now()
	swept, err := m.store.SweepExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("sweep reservations: %w", err)
	}
	m.metrics.RecordSweep(swept, time.Since(start))
	if swept > 0 {
		m.logger.Info("expired reservations swept", "count", swept)
	}
	return swept, nil
}

// Available returns the units of productID that can still be reserved.
func (m *ReservationManager) Available(ctx context.Context, productID int64) (int64, error) {
	stock, err := m.catalog.AvailableStock(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("available: failed to read stock of product %d: %w", productID, err)
	}
	held, err := m.store.ActiveQuantity(ctx, productID, m.now())
	if err != nil {
		return 0, fmt.Errorf("available: %w", err)
	}
	if held > stock {
		return 0, nil
	}
	return stock - held, nil
}

// Get returns a reservation by id.
func (m *ReservationManager) Get(ctx context.Context, id string) (*domain.StockReservation, error) {
	reservation, err := m.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	return reservation, nil
}
