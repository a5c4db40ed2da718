package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vouchpay/vouchpay/internal/fault"
)

const sweepBatchSize = 100

// Sweeper periodically releases delivered orders whose verification window
// has closed. It tolerates losing races: an order verified, disputed or
// already swept between listing and release is skipped, not failed.
type Sweeper struct {
	orders   *Service
	repo     Repository
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(orders *Service, repo Repository, interval, timeout time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		orders:   orders,
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("deadline sweeper started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("deadline sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over elapsed orders.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	elapsed, err := s.repo.ListDeadlineElapsed(ctx, s.now().UTC(), sweepBatchSize)
	if err != nil {
		s.logger.Error("sweep listing failed", slog.Any("error", err))
		return
	}

	for _, o := range elapsed {
		if _, err := s.orders.AutoVerify(ctx, o.ID); err != nil {
			if errors.Is(err, fault.ErrAlreadyResolved) || errors.Is(err, fault.ErrInvalidTransition) {
				// Lost the race to a buyer action or another sweeper.
				continue
			}
			s.logger.Error("auto-verify failed",
				slog.String("order_id", o.ID), slog.Any("error", err))
			continue
		}
		s.logger.Info("escrow auto-released after verification deadline",
			slog.String("order_id", o.ID), slog.String("actor", SystemActor))
	}
}
