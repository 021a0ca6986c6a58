package fulfillment

import (
	"context"
	"time"

	"github.com/nmarkelov/simshop/internal/logger"
)

// Sweeper refunds awaiting orders whose deadline passed. Racing sweeps and
// manual cancels are fine: the order status transition is conditional, and a
// lost race is skipped.
type Sweeper struct {
	interval     time.Duration
	batchSize    int
	logger       logger.Logger
	orderService orderService
}

func (s *Sweeper) Sweep(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	return idleStopped
}

func (s *Sweeper) sweep(ctx context.Context) {
	orders, err := s.orderService.ListExpired(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list expired orders", "error", err)
		return
	}

	for _, order := range orders {
		if _, err := s.orderService.Expire(ctx, order.ID); err != nil {
			if lostRace(err) {
				continue
			}
			s.logger.Error("Failed to expire order", "error", err, "order_id", order.ID)
			continue
		}

		s.logger.Info("Expired order refunded", "order_id", order.ID)
	}
}
