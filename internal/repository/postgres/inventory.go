package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
)

type InventoryRepo struct {
	DB DBTX
}

const addItem = `-- name: AddItem
INSERT INTO inventory_items (id, created_at, category, number, session, password, status, unit_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, category, number, session, password, status, unit_price, order_id
`

func (r *InventoryRepo) AddItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Status == "" {
		item.Status = models.ItemStatusAvailable
	}

	rows, _ := r.DB.Query(ctx, addItem, item.ID, item.CreatedAt, item.Category, item.Number, item.Session, item.Password, item.Status, item.UnitPrice)
	created, err := pgx.CollectOneRow(rows, rowToItem)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

// The inner select locks candidate rows with SKIP LOCKED, so two concurrent
// reservations for the same category never claim the same item; each claims
// from the rows the other left alone.
const reserveBatch = `-- name: ReserveBatch
UPDATE inventory_items
SET status = $4, order_id = $3
WHERE id IN (
	SELECT id FROM inventory_items
	WHERE category = $1 AND status = $5
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING id, created_at, category, number, session, password, status, unit_price, order_id
`

func (r *InventoryRepo) ReserveBatch(ctx context.Context, category string, quantity int, orderID uuid.UUID) ([]models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, reserveBatch, category, quantity, orderID, models.ItemStatusReserved, models.ItemStatusAvailable)
	items, err := pgx.CollectRows(rows, rowToItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

const releaseItem = `-- name: ReleaseItem
UPDATE inventory_items
SET status = $2, order_id = NULL
WHERE id = $1 AND status = $3
`

func (r *InventoryRepo) Release(ctx context.Context, itemID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, releaseItem, itemID, models.ItemStatusAvailable, models.ItemStatusReserved)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrItemNotFound
	}

	return nil
}

const markUsedItem = `-- name: MarkUsedItem
UPDATE inventory_items
SET status = $2
WHERE id = $1 AND status = $3
`

func (r *InventoryRepo) MarkUsed(ctx context.Context, itemID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, markUsedItem, itemID, models.ItemStatusUsed, models.ItemStatusReserved)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrItemNotFound
	}

	return nil
}

const releaseByOrder = `-- name: ReleaseByOrder
UPDATE inventory_items
SET status = $2, order_id = NULL
WHERE order_id = $1 AND status = $3
`

func (r *InventoryRepo) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	tag, err := r.DB.Exec(ctx, releaseByOrder, orderID, models.ItemStatusAvailable, models.ItemStatusReserved)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

const markUsedByOrder = `-- name: MarkUsedByOrder
UPDATE inventory_items
SET status = $2
WHERE order_id = $1 AND status = $3
`

func (r *InventoryRepo) MarkUsedByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	tag, err := r.DB.Exec(ctx, markUsedByOrder, orderID, models.ItemStatusUsed, models.ItemStatusReserved)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

const listByOrder = `-- name: ListByOrder
SELECT id, created_at, category, number, session, password, status, unit_price, order_id
FROM inventory_items
WHERE order_id = $1
ORDER BY created_at
`

func (r *InventoryRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryItem, error) {
	rows, _ := r.DB.Query(ctx, listByOrder, orderID)
	items, err := pgx.CollectRows(rows, rowToItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return items, nil
}

const countAvailable = `-- name: CountAvailable
SELECT count(*) FROM inventory_items
WHERE category = $1 AND status = $2
`

func (r *InventoryRepo) CountAvailable(ctx context.Context, category string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, countAvailable, category, models.ItemStatusAvailable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func rowToItem(row pgx.CollectableRow) (models.InventoryItem, error) {
	var i models.InventoryItem
	err := row.Scan(&i.ID, &i.CreatedAt, &i.Category, &i.Number, &i.Session, &i.Password, &i.Status, &i.UnitPrice, &i.OrderID)
	return i, err
}
