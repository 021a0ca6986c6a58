package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
)

type OrderRepo struct {
	DB DBTX
}

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
`

func (r *OrderRepo) Create(ctx context.Context, o models.Order) (models.Order, error) {
	now := time.Now()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.ModifiedAt.IsZero() {
		o.ModifiedAt = now
	}
	if o.Status == "" {
		o.Status = models.OrderStatusAwaiting
	}

	rows, _ := r.DB.Query(ctx, createOrder,
		o.ID, o.CreatedAt, o.ModifiedAt, o.AccountID, o.Category, o.Quantity,
		o.UnitPrice, o.Total, o.Status, o.Deadline, o.Proof, o.ExternalID)
	created, err := pgx.CollectOneRow(rows, rowToOrder)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getOrder = `-- name: GetOrder
SELECT id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
FROM orders
WHERE id = $1
`

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, getOrder, id)
	order, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		return order, apperrors.ErrOrderNotFound
	default:
		return order, fmt.Errorf("db error: %w", err)
	}
}

const listOrdersByAccount = `-- name: ListOrdersByAccount
SELECT id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
FROM orders
WHERE account_id = $1
ORDER BY created_at DESC
`

func (r *OrderRepo) ListByAccount(ctx context.Context, accountID int64) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrdersByAccount, accountID)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return orders, nil
}

const listOrders = `-- name: ListOrders
SELECT id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
FROM orders
WHERE ($1::text[] IS NULL OR status = ANY($1))
  AND ($2::timestamptz IS NULL OR deadline < $2)
ORDER BY created_at
LIMIT $3
`

func (r *OrderRepo) List(ctx context.Context, opts repository.ListOrdersOpts) ([]models.Order, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var deadlineBefore *time.Time
	if !opts.DeadlineBefore.IsZero() {
		deadlineBefore = &opts.DeadlineBefore
	}

	rows, _ := r.DB.Query(ctx, listOrders, opts.Statuses, deadlineBefore, limit)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return orders, nil
}

// The status guard makes this the single arbiter of the cancel/fulfill/expire
// race: only one transition out of awaiting_fulfillment ever matches.
const transitionFromAwaiting = `-- name: TransitionFromAwaiting
UPDATE orders
SET status = $2, proof = $3, modified_at = $4
WHERE id = $1 AND status = $5
RETURNING id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
`

func (r *OrderRepo) TransitionFromAwaiting(ctx context.Context, id uuid.UUID, newStatus string, proof string) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, transitionFromAwaiting, id, newStatus, proof, time.Now(), models.OrderStatusAwaiting)
	order, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.lostTransition(ctx, id)
	default:
		return order, fmt.Errorf("db error: %w", err)
	}
}

// Report why the conditional transition matched nothing
func (r *OrderRepo) lostTransition(ctx context.Context, id uuid.UUID) (models.Order, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return order, err
	}

	switch order.Status {
	case models.OrderStatusFulfilled:
		return order, apperrors.ErrAlreadyFulfilled
	case models.OrderStatusCancelled:
		return order, apperrors.ErrAlreadyCancelled
	default:
		return order, apperrors.ErrAlreadyProcessed
	}
}

const setOrderExternalID = `-- name: SetOrderExternalID
UPDATE orders
SET external_id = $2, modified_at = $3
WHERE id = $1 AND status = $4
RETURNING id, created_at, modified_at, account_id, category, quantity, unit_price, total, status, deadline, proof, external_id
`

func (r *OrderRepo) SetExternalID(ctx context.Context, id uuid.UUID, externalID string) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, setOrderExternalID, id, externalID, time.Now(), models.OrderStatusAwaiting)
	order, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.lostTransition(ctx, id)
	default:
		return order, fmt.Errorf("db error: %w", err)
	}
}

func rowToOrder(row pgx.CollectableRow) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.CreatedAt, &o.ModifiedAt, &o.AccountID, &o.Category, &o.Quantity,
		&o.UnitPrice, &o.Total, &o.Status, &o.Deadline, &o.Proof, &o.ExternalID)
	return o, err
}
