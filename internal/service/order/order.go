package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/service/ledger"
)

const defaultFulfillmentWait = 15 * time.Minute

type Config struct {
	// How long an order may stay in awaiting_fulfillment before the sweeper
	// refunds it
	FulfillmentWait time.Duration
}

type Service struct {
	config   Config
	storage  repository.Storage
	metrics  *metrics.Metrics
	events   events.Publisher
	notifier notify.Notifier
	logger   logger.Logger
}

func NewService(config Config, storage repository.Storage, m *metrics.Metrics, pub events.Publisher, notifier notify.Notifier, l logger.Logger) *Service {
	if config.FulfillmentWait <= 0 {
		config.FulfillmentWait = defaultFulfillmentWait
	}

	return &Service{
		config:   config,
		storage:  storage,
		metrics:  m,
		events:   pub,
		notifier: notifier,
		logger:   l,
	}
}

// Create charges the account and reserves stock for the order. Debit,
// reservation and the order row are one transaction: when the category is
// short on stock the whole purchase rolls back and the charge never sticks.
func (s *Service) Create(ctx context.Context, accountID int64, category string, quantity int) (models.Order, error) {
	var order models.Order

	if quantity <= 0 {
		return order, apperrors.ErrInvalidQuantity
	}

	cat, err := s.storage.Category().Get(ctx, category)
	if err != nil {
		return order, err
	}

	total := cat.UnitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	orderID := uuid.New()

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Account().GetOrCreate(ctx, accountID, ""); err != nil {
			return err
		}

		var err error
		order, err = store.Order().Create(ctx, models.Order{
			ID:        orderID,
			AccountID: accountID,
			Category:  category,
			Quantity:  quantity,
			UnitPrice: cat.UnitPrice,
			Total:     total,
			Status:    models.OrderStatusAwaiting,
			Deadline:  time.Now().Add(s.config.FulfillmentWait),
		})
		if err != nil {
			return err
		}

		if _, err := ledger.Apply(ctx, store, models.Transaction{
			AccountID:   accountID,
			Type:        models.TransactionTypeDebit,
			Reason:      models.TxReasonPurchase,
			Amount:      total,
			ReferenceID: &orderID,
		}); err != nil {
			return err
		}

		items, err := store.Inventory().ReserveBatch(ctx, category, quantity, orderID)
		if err != nil {
			return err
		}
		if len(items) < quantity {
			return apperrors.ErrInventoryShortfall
		}

		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	s.metrics.OrdersCreated.Inc()
	s.events.Publish(events.SubjectOrderCreated, map[string]any{
		"order_id":   order.ID,
		"account_id": accountID,
		"category":   category,
		"quantity":   quantity,
		"total":      total,
	})

	return order, nil
}

// Fulfill delivers the order: items are consumed and the proof recorded.
// Exactly one fulfillment wins; later calls get ErrAlreadyProcessed with the
// fulfilled order, never a second delivery.
func (s *Service) Fulfill(ctx context.Context, orderID uuid.UUID, proof string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		order, err = store.Order().TransitionFromAwaiting(ctx, orderID, models.OrderStatusFulfilled, proof)
		if err != nil {
			return err
		}

		_, err = store.Inventory().MarkUsedByOrder(ctx, orderID)
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAlreadyFulfilled):
		return order, apperrors.ErrAlreadyProcessed
	default:
		return order, err
	}

	s.metrics.OrdersCompleted.WithLabelValues(models.OrderStatusFulfilled).Inc()
	s.events.Publish(events.SubjectOrderCompleted, map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	s.notifier.Notify(ctx, order.AccountID, fmt.Sprintf("Your order %s has been fulfilled.", order.ID))

	return order, nil
}

// Cancel refunds an order the user no longer wants. Allowed only while the
// order is still awaiting fulfillment.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	order, err := s.completeWithRefund(ctx, orderID, models.OrderStatusCancelled)
	if err != nil {
		return order, err
	}

	s.notifier.Notify(ctx, order.AccountID, fmt.Sprintf("Your order %s was cancelled and %s was refunded.", order.ID, order.Total))

	return order, nil
}

// Expire refunds an order whose fulfillment deadline passed. Safe to race
// with Cancel, Fulfill or another sweep: the status transition is the sole
// arbiter, so the compensating credit runs at most once.
func (s *Service) Expire(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	order, err := s.completeWithRefund(ctx, orderID, models.OrderStatusRefunded)
	if err != nil {
		return order, err
	}

	s.notifier.Notify(ctx, order.AccountID, fmt.Sprintf("Your order %s timed out and %s was refunded.", order.ID, order.Total))

	return order, nil
}

func (s *Service) completeWithRefund(ctx context.Context, orderID uuid.UUID, newStatus string) (models.Order, error) {
	var order models.Order

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		order, err = store.Order().TransitionFromAwaiting(ctx, orderID, newStatus, "")
		if err != nil {
			return err
		}

		if _, err := store.Inventory().ReleaseByOrder(ctx, orderID); err != nil {
			return err
		}

		_, err = ledger.Apply(ctx, store, models.Transaction{
			AccountID:   order.AccountID,
			Type:        models.TransactionTypeCredit,
			Reason:      models.TxReasonRefund,
			Amount:      order.Total,
			ReferenceID: &orderID,
		})
		return err
	})
	if err != nil {
		return order, err
	}

	s.metrics.OrdersCompleted.WithLabelValues(newStatus).Inc()
	s.metrics.LedgerOps.WithLabelValues(models.TransactionTypeCredit, models.TxReasonRefund).Inc()
	s.events.Publish(events.SubjectOrderCompleted, map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})

	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	return s.storage.Order().Get(ctx, orderID)
}

// Items returns the inventory items attached to the order, with credential
// material, for delivery by the bot layer
func (s *Service) Items(ctx context.Context, orderID uuid.UUID) ([]models.InventoryItem, error) {
	if _, err := s.storage.Order().Get(ctx, orderID); err != nil {
		return nil, err
	}

	return s.storage.Inventory().ListByOrder(ctx, orderID)
}

func (s *Service) ListByAccount(ctx context.Context, accountID int64) ([]models.Order, error) {
	return s.storage.Order().ListByAccount(ctx, accountID)
}

// ListAwaiting feeds the fulfillment driver
func (s *Service) ListAwaiting(ctx context.Context, limit int) ([]models.Order, error) {
	return s.storage.Order().List(ctx, repository.ListOrdersOpts{
		Statuses: []string{models.OrderStatusAwaiting},
		Limit:    limit,
	})
}

// ListExpired returns awaiting orders whose deadline already passed
func (s *Service) ListExpired(ctx context.Context, limit int) ([]models.Order, error) {
	return s.storage.Order().List(ctx, repository.ListOrdersOpts{
		Statuses:       []string{models.OrderStatusAwaiting},
		DeadlineBefore: time.Now(),
		Limit:          limit,
	})
}

// SetExternalID attaches the provider activation id to an awaiting order
func (s *Service) SetExternalID(ctx context.Context, orderID uuid.UUID, externalID string) (models.Order, error) {
	return s.storage.Order().SetExternalID(ctx, orderID, externalID)
}
