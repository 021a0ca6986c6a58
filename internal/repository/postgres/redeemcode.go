package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
)

type RedeemRepo struct {
	DB DBTX
}

const createRedeemCode = `-- name: CreateRedeemCode
INSERT INTO redeem_codes (code, created_at, amount, max_claims, claim_count, claimed_by)
VALUES ($1, $2, $3, $4, 0, '{}')
RETURNING code, created_at, amount, max_claims, claim_count, claimed_by
`

func (r *RedeemRepo) Create(ctx context.Context, code models.RedeemCode) (models.RedeemCode, error) {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createRedeemCode, code.Code, code.CreatedAt, code.Amount, code.MaxClaims)
	created, err := pgx.CollectOneRow(rows, rowToRedeemCode)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrCodeExists
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getRedeemCode = `-- name: GetRedeemCode
SELECT code, created_at, amount, max_claims, claim_count, claimed_by
FROM redeem_codes
WHERE code = $1
`

func (r *RedeemRepo) Get(ctx context.Context, code string) (models.RedeemCode, error) {
	rows, _ := r.DB.Query(ctx, getRedeemCode, code)
	rc, err := pgx.CollectOneRow(rows, rowToRedeemCode)

	switch {
	case err == nil:
		return rc, nil
	case errors.Is(err, pgx.ErrNoRows):
		return rc, apperrors.ErrCodeNotFound
	default:
		return rc, fmt.Errorf("db error: %w", err)
	}
}

const listRedeemCodes = `-- name: ListRedeemCodes
SELECT code, created_at, amount, max_claims, claim_count, claimed_by
FROM redeem_codes
ORDER BY created_at DESC
`

func (r *RedeemRepo) List(ctx context.Context) ([]models.RedeemCode, error) {
	rows, _ := r.DB.Query(ctx, listRedeemCodes)
	codes, err := pgx.CollectRows(rows, rowToRedeemCode)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return codes, nil
}

// All three claim checks live in the WHERE clause, so two concurrent claims
// can never both slip past the limit or the per-account uniqueness: the row
// lock serializes them and the loser's condition no longer holds.
const claimRedeemCode = `-- name: ClaimRedeemCode
UPDATE redeem_codes
SET claim_count = claim_count + 1, claimed_by = array_append(claimed_by, $2)
WHERE code = $1 AND claim_count < max_claims AND NOT (claimed_by @> ARRAY[$2]::bigint[])
RETURNING code, created_at, amount, max_claims, claim_count, claimed_by
`

func (r *RedeemRepo) Claim(ctx context.Context, code string, accountID int64) (models.RedeemCode, error) {
	rows, _ := r.DB.Query(ctx, claimRedeemCode, code, accountID)
	rc, err := pgx.CollectOneRow(rows, rowToRedeemCode)

	switch {
	case err == nil:
		return rc, nil
	case errors.Is(err, pgx.ErrNoRows):
		return r.lostClaim(ctx, code, accountID)
	default:
		return rc, fmt.Errorf("db error: %w", err)
	}
}

// Report why the conditional claim matched nothing
func (r *RedeemRepo) lostClaim(ctx context.Context, code string, accountID int64) (models.RedeemCode, error) {
	rc, err := r.Get(ctx, code)
	if err != nil {
		return rc, err
	}

	for _, id := range rc.ClaimedBy {
		if id == accountID {
			return rc, apperrors.ErrAlreadyClaimed
		}
	}

	return rc, apperrors.ErrLimitReached
}

func rowToRedeemCode(row pgx.CollectableRow) (models.RedeemCode, error) {
	var rc models.RedeemCode
	err := row.Scan(&rc.Code, &rc.CreatedAt, &rc.Amount, &rc.MaxClaims, &rc.ClaimCount, &rc.ClaimedBy)
	return rc, err
}
