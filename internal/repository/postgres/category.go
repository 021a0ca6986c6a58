package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
)

type CategoryRepo struct {
	DB DBTX
}

const setCategoryPrice = `-- name: SetCategoryPrice
INSERT INTO categories (name, unit_price)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET unit_price = EXCLUDED.unit_price
RETURNING name, unit_price
`

func (r *CategoryRepo) SetPrice(ctx context.Context, name string, price decimal.Decimal) (models.Category, error) {
	rows, _ := r.DB.Query(ctx, setCategoryPrice, name, price)
	category, err := pgx.CollectOneRow(rows, rowToCategory)
	if err != nil {
		return category, fmt.Errorf("db error: %w", err)
	}

	return category, nil
}

const getCategory = `-- name: GetCategory
SELECT name, unit_price FROM categories
WHERE name = $1
`

func (r *CategoryRepo) Get(ctx context.Context, name string) (models.Category, error) {
	rows, _ := r.DB.Query(ctx, getCategory, name)
	category, err := pgx.CollectOneRow(rows, rowToCategory)

	switch {
	case err == nil:
		return category, nil
	case errors.Is(err, pgx.ErrNoRows):
		return category, apperrors.ErrCategoryNotFound
	default:
		return category, fmt.Errorf("db error: %w", err)
	}
}

const listCategories = `-- name: ListCategories
SELECT name, unit_price FROM categories
ORDER BY name
`

func (r *CategoryRepo) List(ctx context.Context) ([]models.Category, error) {
	rows, _ := r.DB.Query(ctx, listCategories)
	categories, err := pgx.CollectRows(rows, rowToCategory)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return categories, nil
}

func rowToCategory(row pgx.CollectableRow) (models.Category, error) {
	var c models.Category
	err := row.Scan(&c.Name, &c.UnitPrice)
	return c, err
}
