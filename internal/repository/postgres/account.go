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

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

// Insert the account if it is not known yet, return it either way.
// The plain select arm only matches when the insert hit the conflict.
const getOrCreateAccount = `-- name: GetOrCreateAccount
WITH insert_account AS (
	INSERT INTO accounts (id, created_at, username, balance)
	VALUES ($1, $2, $3, 0)
	ON CONFLICT (id) DO NOTHING
	RETURNING id, created_at, username, balance, referrer_id
)
SELECT * FROM insert_account
UNION
SELECT id, created_at, username, balance, referrer_id FROM accounts WHERE id = $1
`

func (r *AccountRepo) GetOrCreate(ctx context.Context, id int64, username string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateAccount, id, time.Now(), username)
	account, err := pgx.CollectOneRow(rows, rowToAccount)
	if err != nil {
		return account, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

const getAccount = `-- name: GetAccount
SELECT id, created_at, username, balance, referrer_id FROM accounts
WHERE id = $1
`

func (r *AccountRepo) Get(ctx context.Context, id int64) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccount, id)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const setReferrer = `-- name: SetReferrer
UPDATE accounts SET referrer_id = $2
WHERE id = $1 AND referrer_id IS NULL AND id <> $2
`

func (r *AccountRepo) SetReferrer(ctx context.Context, id int64, referrerID int64) (bool, error) {
	tag, err := r.DB.Exec(ctx, setReferrer, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// The guard condition makes the mutation atomic: a debit that would drive the
// balance negative matches no row, so concurrent debits can never both succeed
// past the available funds.
const updateBalance = `-- name: UpdateBalance
UPDATE accounts
SET balance = balance + $2
WHERE id = $1 AND balance + $2 >= 0
RETURNING id, created_at, username, balance, referrer_id
`

func (r *AccountRepo) UpdateBalance(ctx context.Context, t models.Transaction) (models.Account, error) {
	if !t.Amount.IsPositive() {
		return models.Account{}, apperrors.ErrInvalidAmount
	}

	delta := t.Amount
	if t.Type == models.TransactionTypeDebit {
		delta = delta.Neg()
	}

	rows, _ := r.DB.Query(ctx, updateBalance, t.AccountID, delta)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the account is missing or the debit guard rejected the update
		if _, getErr := r.Get(ctx, t.AccountID); getErr != nil {
			return account, getErr
		}
		return account, apperrors.ErrInsufficientFunds
	default:
		return account, fmt.Errorf("db error: %w", err)
	}
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO transactions (id, processed_at, account_id, type, reason, amount, reference_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, processed_at, account_id, type, reason, amount, reference_id
`

func (r *AccountRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createTransaction, t.ID, t.ProcessedAt, t.AccountID, t.Type, t.Reason, t.Amount, t.ReferenceID)
	created, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return created, apperrors.ErrAccountNotFound
		}
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listTransactions = `-- name: ListTransactions
SELECT id, processed_at, account_id, type, reason, amount, reference_id FROM transactions
WHERE account_id = $1 AND ($2::text[] IS NULL OR type = ANY($2))
ORDER BY processed_at DESC
`

func (r *AccountRepo) ListTransactions(ctx context.Context, accountID int64, types []string) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactions, accountID, types)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.Username, &a.Balance, &a.ReferrerID)
	return a, err
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.ProcessedAt, &t.AccountID, &t.Type, &t.Reason, &t.Amount, &t.ReferenceID)
	return t, err
}
