package fulfillment

import (
	"context"
	"errors"
	"sync"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/service/provider"
)

// lostRace reports whether the error means another actor already moved the
// order out of awaiting. Such losses are expected and must stay quiet.
func lostRace(err error) bool {
	return errors.Is(err, apperrors.ErrAlreadyProcessed) ||
		errors.Is(err, apperrors.ErrAlreadyFulfilled) ||
		errors.Is(err, apperrors.ErrAlreadyCancelled)
}

type Consumer struct {
	countWorkers int
	country      string

	client       providerClient
	orderService orderService
	metrics      *metrics.Metrics
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.Order) {
	for {
		select {
		case <-ctx.Done():
			return

		case order, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			c.process(ctx, order)
		}
	}
}

// process advances one awaiting order a single step. An order without an
// activation gets a number rented; an order with one gets polled for the
// code. Unfinished orders are picked up again on the next producer tick,
// bounded by the order deadline and the sweeper.
func (c *Consumer) process(ctx context.Context, order models.Order) {
	if order.ExternalID == nil {
		activation, err := c.client.RequestNumber(ctx, order.Category, c.country)
		if err != nil {
			c.metrics.ProviderFailures.Inc()
			c.logger.Warn("Failed to request number", "error", err, "order_id", order.ID)
			return
		}

		if _, err := c.orderService.SetExternalID(ctx, order.ID, activation.ID); err != nil {
			c.logger.Error("Failed to attach activation to order", "error", err, "order_id", order.ID)
			// The order moved on without us; don't leak the rented number
			if relErr := c.client.Release(ctx, activation.ID); relErr != nil {
				c.logger.Warn("Failed to release activation", "error", relErr, "activation_id", activation.ID)
			}
		}
		return
	}

	code, err := c.client.PollCode(ctx, *order.ExternalID)
	var provErr *provider.Error

	switch {
	case err == nil:
		if _, err := c.orderService.Fulfill(ctx, order.ID, code); err != nil && !lostRace(err) {
			c.logger.Error("Failed to fulfill order", "error", err, "order_id", order.ID)
		}

	case errors.As(err, &provErr):
		switch provErr.Code {
		case provider.CodeWaitCode:
			c.logger.Debug("Activation still waiting for code", "order_id", order.ID)

		case provider.CodeCancelled:
			c.logger.Info("Activation cancelled upstream, refunding order", "order_id", order.ID)
			if _, err := c.orderService.Expire(ctx, order.ID); err != nil && !lostRace(err) {
				c.logger.Error("Failed to refund order", "error", err, "order_id", order.ID)
			}

		default:
			c.metrics.ProviderFailures.Inc()
			c.logger.Error("Provider error while polling", "error", err, "order_id", order.ID)
		}

	default:
		c.metrics.ProviderFailures.Inc()
		c.logger.Error("Unexpected error while polling", "error", err, "order_id", order.ID)
	}
}
