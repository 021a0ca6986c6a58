package postgres

import (
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/testutil"
)

func TestRedeemCodes(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				code, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code:      "BONUS1",
					Amount:    decimal.NewFromInt(25),
					MaxClaims: 3,
				})

				require.NoError(t, err)
				require.Equal(t, "BONUS1", code.Code)
				require.Zero(t, code.ClaimCount)
				require.Empty(t, code.ClaimedBy)
			})
		})

		t.Run("duplicate code", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code: "BONUS1", Amount: decimal.NewFromInt(25), MaxClaims: 3,
				})
				require.NoError(t, err)

				_, err = storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code: "BONUS1", Amount: decimal.NewFromInt(10), MaxClaims: 1,
				})

				require.ErrorIs(t, err, apperrors.ErrCodeExists)
			})
		})
	})

	t.Run("Claim", func(t *testing.T) {
		t.Run("claim ok", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code: "BONUS1", Amount: decimal.NewFromInt(25), MaxClaims: 3,
				})
				require.NoError(t, err)

				code, err := storage.Redeem().Claim(t.Context(), "BONUS1", 1001)

				require.NoError(t, err)
				require.Equal(t, 1, code.ClaimCount)
				require.Contains(t, code.ClaimedBy, int64(1001))
			})
		})

		t.Run("same account can't claim twice", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code: "BONUS1", Amount: decimal.NewFromInt(25), MaxClaims: 3,
				})
				require.NoError(t, err)

				_, err = storage.Redeem().Claim(t.Context(), "BONUS1", 1001)
				require.NoError(t, err)

				_, err = storage.Redeem().Claim(t.Context(), "BONUS1", 1001)

				require.ErrorIs(t, err, apperrors.ErrAlreadyClaimed)
			})
		})

		t.Run("exhausted code rejects new claimers", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
					Code: "BONUS1", Amount: decimal.NewFromInt(25), MaxClaims: 1,
				})
				require.NoError(t, err)

				_, err = storage.Redeem().Claim(t.Context(), "BONUS1", 1001)
				require.NoError(t, err)

				_, err = storage.Redeem().Claim(t.Context(), "BONUS1", 1002)

				require.ErrorIs(t, err, apperrors.ErrLimitReached)

				// Exhausted code stays readable as history
				code, err := storage.Redeem().Get(t.Context(), "BONUS1")
				require.NoError(t, err)
				require.Equal(t, 1, code.ClaimCount)
			})
		})

		t.Run("unknown code", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Redeem().Claim(t.Context(), "NOPE", 1001)

				require.ErrorIs(t, err, apperrors.ErrCodeNotFound)
			})
		})
	})

	// Concurrent claims against the pool: the conditional update must keep
	// claim_count at max_claims no matter how many accounts race
	t.Run("concurrent claims never pass the limit", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		_, err := storage.Redeem().Create(t.Context(), models.RedeemCode{
			Code: "RACE42", Amount: decimal.NewFromInt(25), MaxClaims: 2,
		})
		require.NoError(t, err)

		const claimers = 6
		errs := make([]error, claimers)

		var wg sync.WaitGroup
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = storage.Redeem().Claim(t.Context(), "RACE42", int64(5000+i))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, apperrors.ErrLimitReached)
		}
		require.Equal(t, 2, succeeded, "claims must stop exactly at the limit")

		code, err := storage.Redeem().Get(t.Context(), "RACE42")
		require.NoError(t, err)
		require.Equal(t, 2, code.ClaimCount)
		require.Len(t, code.ClaimedBy, 2)
	})
}
