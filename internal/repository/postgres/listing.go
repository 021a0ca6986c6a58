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
)

type ListingRepo struct {
	DB DBTX
}

const createListing = `-- name: CreateListing
INSERT INTO listings (id, created_at, seller_id, number, category, unit_price, status, token)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, seller_id, number, category, unit_price, status, token, confirmed_by
`

func (r *ListingRepo) Create(ctx context.Context, l models.Listing) (models.Listing, error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	if l.Status == "" {
		l.Status = models.ListingStatusAwaitingConfirmation
	}

	rows, _ := r.DB.Query(ctx, createListing, l.ID, l.CreatedAt, l.SellerID, l.Number, l.Category, l.UnitPrice, l.Status, l.Token)
	created, err := pgx.CollectOneRow(rows, rowToListing)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getListing = `-- name: GetListing
SELECT id, created_at, seller_id, number, category, unit_price, status, token, confirmed_by
FROM listings
WHERE id = $1
`

func (r *ListingRepo) Get(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	rows, _ := r.DB.Query(ctx, getListing, id)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case errors.Is(err, pgx.ErrNoRows):
		return listing, apperrors.ErrListingNotFound
	default:
		return listing, fmt.Errorf("db error: %w", err)
	}
}

const listListingsByStatus = `-- name: ListListingsByStatus
SELECT id, created_at, seller_id, number, category, unit_price, status, token, confirmed_by
FROM listings
WHERE status = $1
ORDER BY created_at
`

func (r *ListingRepo) ListByStatus(ctx context.Context, status string) ([]models.Listing, error) {
	rows, _ := r.DB.Query(ctx, listListingsByStatus, status)
	listings, err := pgx.CollectRows(rows, rowToListing)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return listings, nil
}

const confirmListingByToken = `-- name: ConfirmListingByToken
UPDATE listings
SET status = $3, confirmed_by = $2
WHERE token = $1 AND status = $4
RETURNING id, created_at, seller_id, number, category, unit_price, status, token, confirmed_by
`

func (r *ListingRepo) ConfirmByToken(ctx context.Context, token string, confirmerID int64) (models.Listing, error) {
	rows, _ := r.DB.Query(ctx, confirmListingByToken, token, confirmerID,
		models.ListingStatusVerified, models.ListingStatusAwaitingConfirmation)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case errors.Is(err, pgx.ErrNoRows):
		return listing, apperrors.ErrTokenNotFound
	default:
		return listing, fmt.Errorf("db error: %w", err)
	}
}

const transitionListingFromVerified = `-- name: TransitionListingFromVerified
UPDATE listings
SET status = $2
WHERE id = $1 AND status = $3
RETURNING id, created_at, seller_id, number, category, unit_price, status, token, confirmed_by
`

func (r *ListingRepo) TransitionFromVerified(ctx context.Context, id uuid.UUID, newStatus string) (models.Listing, error) {
	rows, _ := r.DB.Query(ctx, transitionListingFromVerified, id, newStatus, models.ListingStatusVerified)
	listing, err := pgx.CollectOneRow(rows, rowToListing)

	switch {
	case err == nil:
		return listing, nil
	case errors.Is(err, pgx.ErrNoRows):
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return listing, getErr
		}
		return listing, apperrors.ErrAlreadyProcessed
	default:
		return listing, fmt.Errorf("db error: %w", err)
	}
}

func rowToListing(row pgx.CollectableRow) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.CreatedAt, &l.SellerID, &l.Number, &l.Category, &l.UnitPrice, &l.Status, &l.Token, &l.ConfirmedBy)
	return l, err
}
