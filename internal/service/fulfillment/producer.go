package fulfillment

import (
	"context"
	"time"

	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/models"
)

type Producer struct {
	interval     time.Duration
	batchSize    int
	logger       logger.Logger
	orderService orderService
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				p.logger.Debug("Producer tick: fetching awaiting orders")

				orders, err := p.orderService.ListAwaiting(ctx, p.batchSize)
				if err != nil {
					p.logger.Error("Failed to list awaiting orders", "error", err)
					continue
				}

				for _, order := range orders {
					select {
					case <-ctx.Done():
						p.logger.Debug("Producer stopped by context while sending orders")
						return
					case out <- order:
						p.logger.Debug("Order sent to channel", "orderID", order.ID)
					}
				}
			}
		}
	}()

	return idleStopped
}
