package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
)

type RechargeRepo struct {
	DB DBTX
}

const createRecharge = `-- name: CreateRecharge
INSERT INTO recharge_requests (id, created_at, account_id, claimed_amount, proof_ref, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, account_id, claimed_amount, final_amount, proof_ref, status, approver_id
`

func (r *RechargeRepo) Create(ctx context.Context, req models.RechargeRequest) (models.RechargeRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if req.Status == "" {
		req.Status = models.RechargeStatusPending
	}

	rows, _ := r.DB.Query(ctx, createRecharge, req.ID, req.CreatedAt, req.AccountID, req.ClaimedAmount, req.ProofRef, req.Status)
	created, err := pgx.CollectOneRow(rows, rowToRecharge)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getRecharge = `-- name: GetRecharge
SELECT id, created_at, account_id, claimed_amount, final_amount, proof_ref, status, approver_id
FROM recharge_requests
WHERE id = $1
`

func (r *RechargeRepo) Get(ctx context.Context, id uuid.UUID) (models.RechargeRequest, error) {
	rows, _ := r.DB.Query(ctx, getRecharge, id)
	req, err := pgx.CollectOneRow(rows, rowToRecharge)

	switch {
	case err == nil:
		return req, nil
	case errors.Is(err, pgx.ErrNoRows):
		return req, apperrors.ErrRechargeNotFound
	default:
		return req, fmt.Errorf("db error: %w", err)
	}
}

const listPendingRecharges = `-- name: ListPendingRecharges
SELECT id, created_at, account_id, claimed_amount, final_amount, proof_ref, status, approver_id
FROM recharge_requests
WHERE status = $1
ORDER BY created_at
`

func (r *RechargeRepo) ListPending(ctx context.Context) ([]models.RechargeRequest, error) {
	rows, _ := r.DB.Query(ctx, listPendingRecharges, models.RechargeStatusPending)
	reqs, err := pgx.CollectRows(rows, rowToRecharge)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return reqs, nil
}

const listRechargesByAccount = `-- name: ListRechargesByAccount
SELECT id, created_at, account_id, claimed_amount, final_amount, proof_ref, status, approver_id
FROM recharge_requests
WHERE account_id = $1
ORDER BY created_at DESC
`

func (r *RechargeRepo) ListByAccount(ctx context.Context, accountID int64) ([]models.RechargeRequest, error) {
	rows, _ := r.DB.Query(ctx, listRechargesByAccount, accountID)
	reqs, err := pgx.CollectRows(rows, rowToRecharge)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return reqs, nil
}

// Approval and decline are idempotency-guarded by the pending-status condition:
// the second caller matches nothing and gets ErrAlreadyProcessed instead of a
// double credit.
const transitionFromPending = `-- name: TransitionRechargeFromPending
UPDATE recharge_requests
SET status = $2, approver_id = $3, final_amount = $4
WHERE id = $1 AND status = $5
RETURNING id, created_at, account_id, claimed_amount, final_amount, proof_ref, status, approver_id
`

func (r *RechargeRepo) TransitionFromPending(ctx context.Context, id uuid.UUID, newStatus string, approverID int64, finalAmount *decimal.Decimal) (models.RechargeRequest, error) {
	rows, _ := r.DB.Query(ctx, transitionFromPending, id, newStatus, approverID, finalAmount, models.RechargeStatusPending)
	req, err := pgx.CollectOneRow(rows, rowToRecharge)

	switch {
	case err == nil:
		return req, nil
	case errors.Is(err, pgx.ErrNoRows):
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return req, getErr
		}
		return req, apperrors.ErrAlreadyProcessed
	default:
		return req, fmt.Errorf("db error: %w", err)
	}
}

func rowToRecharge(row pgx.CollectableRow) (models.RechargeRequest, error) {
	var req models.RechargeRequest
	err := row.Scan(&req.ID, &req.CreatedAt, &req.AccountID, &req.ClaimedAmount, &req.FinalAmount, &req.ProofRef, &req.Status, &req.ApproverID)
	return req, err
}
