// internal/repository/memory/reservation_store.go
package memory

import (
	"context"
	"sync"
	"time"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/repository"
	"wallet-ledger/internal/util"
)

const reservationShards = 32

type reservationShard struct {
	mu        sync.Mutex
	byProduct map[int64]map[string]*domain.StockReservation
}

// ReservationStore keeps stock reservations in memory. Reservations are
// sharded by product id; all writes for one product happen under its
// shard lock, so check-and-insert is atomic per product.
type ReservationStore struct {
	shards [reservationShards]reservationShard

	idxMu sync.RWMutex
	index map[string]int64 // reservation id -> product id
}

var _ repository.ReservationRepository = (*ReservationStore)(nil)

// NewReservationStore creates an empty ReservationStore.
func NewReservationStore() *ReservationStore {
	s := &ReservationStore{index: make(map[string]int64)}
	for i := range s.shards {
		s.shards[i].byProduct = make(map[int64]map[string]*domain.StockReservation)
	}
	return s
}

func (s *ReservationStore) shard(productID int64) *reservationShard {
	idx := productID % reservationShards
	if idx < 0 {
		idx = -idx
	}
	return &s.shards[idx]
}

func (s *ReservationStore) Reserve(_ context.Context, reservation *domain.StockReservation, stock int64) error {
	sh := s.shard(reservation.ProductID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	held := activeQuantity(sh.byProduct[reservation.ProductID], reservation.CreatedAt)
	if held+reservation.Quantity > stock {
		return util.ErrNoStockAvailable
	}

	bucket, ok := sh.byProduct[reservation.ProductID]
	if !ok {
		bucket = make(map[string]*domain.StockReservation)
		sh.byProduct[reservation.ProductID] = bucket
	}
	r := *reservation
	bucket[r.ID] = &r

	s.idxMu.Lock()
	s.index[r.ID] = r.ProductID
	s.idxMu.Unlock()
	return nil
}

func (s *ReservationStore) Release(_ context.Context, id string, at time.Time) (bool, error) {
	return s.deactivate(id, at, domain.ReleaseReasonReleased)
}

func (s *ReservationStore) deactivate(id string, at time.Time, reason string) (bool, error) {
	s.idxMu.RLock()
	productID, ok := s.index[id]
	s.idxMu.RUnlock()
	if !ok {
		return false, util.ErrNotFound
	}

	sh := s.shard(productID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r := sh.byProduct[productID][id]
	if r == nil || !r.IsActive {
		return false, nil
	}
	r.IsActive = false
	r.ReleasedAt = &at
	r.ReleaseReason = reason
	return true, nil
}

func (s *ReservationStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	var swept int64
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, bucket := range sh.byProduct {
			for _, r := range bucket {
				if r.IsActive && !now.Before(r.ExpiresAt) {
					at := now
					r.IsActive = false
					r.ReleasedAt = &at
					r.ReleaseReason = domain.ReleaseReasonExpired
					swept++
				}
			}
		}
		sh.mu.Unlock()
	}
	return swept, nil
}

func (s *ReservationStore) ActiveQuantity(_ context.Context, productID int64, now time.Time) (int64, error) {
	sh := s.shard(productID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return activeQuantity(sh.byProduct[productID], now), nil
}

func (s *ReservationStore) GetReservation(_ context.Context, id string) (*domain.StockReservation, error) {
	s.idxMu.RLock()
	productID, ok := s.index[id]
	s.idxMu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound
	}

	sh := s.shard(productID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r, ok := sh.byProduct[productID][id]
	if !ok {
		return nil, util.ErrNotFound
	}
	out := *r
	return &out, nil
}

func activeQuantity(bucket map[string]*domain.StockReservation, now time.Time) int64 {
	var total int64
	for _, r := range bucket {
		if r.Holds(now) {
			total += r.Quantity
		}
	}
	return total
}
