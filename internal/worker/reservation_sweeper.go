// internal/worker/reservation_sweeper.go
package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper deactivates expired reservations.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// ReservationSweeper runs a Sweeper on a fixed interval.
type ReservationSweeper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

// NewReservationSweeper creates a ReservationSweeper. A non-positive
// interval means every 60 seconds.
func NewReservationSweeper(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *ReservationSweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &ReservationSweeper{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger.With("component", "reservation_sweeper"),
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *ReservationSweeper) Run(ctx context.Context) error {
	s.logger.Info("reservation sweeper started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reservation sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ReservationSweeper) sweep(ctx context.Context) {
	if _, err := s.sweeper.SweepExpired(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("reservation sweep failed", "error", err)
	}
}
