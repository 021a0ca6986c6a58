package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/testutil"
)

func TestListings(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	newListing := func(t *testing.T, storage repository.Storage, token string) models.Listing {
		t.Helper()
		_, err := storage.Account().GetOrCreate(t.Context(), 2001, "seller")
		require.NoError(t, err)

		listing, err := storage.Listing().Create(t.Context(), models.Listing{
			SellerID:  2001,
			Number:    "+15550001",
			Category:  "us-telegram",
			UnitPrice: decimal.NewFromInt(10),
			Token:     token,
		})
		require.NoError(t, err)
		return listing
	}

	t.Run("Create", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			listing := newListing(t, storage, "tok-1")

			require.NotEqual(t, uuid.Nil, listing.ID)
			require.Equal(t, models.ListingStatusAwaitingConfirmation, listing.Status)
			require.Nil(t, listing.ConfirmedBy)
		})
	})

	t.Run("ConfirmByToken", func(t *testing.T) {
		t.Run("moves to verified", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				newListing(t, storage, "tok-1")

				listing, err := storage.Listing().ConfirmByToken(t.Context(), "tok-1", 2001)

				require.NoError(t, err)
				require.Equal(t, models.ListingStatusVerified, listing.Status)
				require.NotNil(t, listing.ConfirmedBy)
				require.Equal(t, int64(2001), *listing.ConfirmedBy)
			})
		})

		t.Run("spent token", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				newListing(t, storage, "tok-1")
				_, err := storage.Listing().ConfirmByToken(t.Context(), "tok-1", 2001)
				require.NoError(t, err)

				_, err = storage.Listing().ConfirmByToken(t.Context(), "tok-1", 2001)

				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})

		t.Run("unknown token", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Listing().ConfirmByToken(t.Context(), "no-such", 2001)

				require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
			})
		})
	})

	t.Run("TransitionFromVerified", func(t *testing.T) {
		t.Run("approve verified listing", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				listing := newListing(t, storage, "tok-1")
				_, err := storage.Listing().ConfirmByToken(t.Context(), "tok-1", 2001)
				require.NoError(t, err)

				got, err := storage.Listing().TransitionFromVerified(t.Context(), listing.ID, models.ListingStatusApproved)

				require.NoError(t, err)
				require.Equal(t, models.ListingStatusApproved, got.Status)
			})
		})

		t.Run("unverified listing rejected", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				listing := newListing(t, storage, "tok-1")

				_, err := storage.Listing().TransitionFromVerified(t.Context(), listing.ID, models.ListingStatusApproved)

				require.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
			})
		})

		t.Run("second decision rejected", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				listing := newListing(t, storage, "tok-1")
				_, err := storage.Listing().ConfirmByToken(t.Context(), "tok-1", 2001)
				require.NoError(t, err)

				_, err = storage.Listing().TransitionFromVerified(t.Context(), listing.ID, models.ListingStatusRejected)
				require.NoError(t, err)

				_, err = storage.Listing().TransitionFromVerified(t.Context(), listing.ID, models.ListingStatusApproved)

				require.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
			})
		})

		t.Run("missing listing", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				_, err := storage.Listing().TransitionFromVerified(t.Context(), uuid.New(), models.ListingStatusApproved)

				require.ErrorIs(t, err, apperrors.ErrListingNotFound)
			})
		})
	})

	t.Run("ListByStatus", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			newListing(t, storage, "tok-1")
			newListing(t, storage, "tok-2")
			_, err := storage.Listing().ConfirmByToken(t.Context(), "tok-2", 2001)
			require.NoError(t, err)

			verified, err := storage.Listing().ListByStatus(t.Context(), models.ListingStatusVerified)

			require.NoError(t, err)
			require.Len(t, verified, 1)
		})
	})
}
