package listing

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/repository/postgres"
	"github.com/nmarkelov/simshop/internal/testutil"
)

func TestListingService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	const adminID = int64(9001)
	const sellerID = int64(2001)

	withTx := func(t *testing.T, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := NewService(Config{AdminIDs: []int64{adminID}}, storage, notify.NewNoOp())

			_, err := storage.Category().SetPrice(t.Context(), "us-telegram", decimal.NewFromInt(10))
			require.NoError(t, err)

			fn(s, storage)
		})
	}

	t.Run("Submit", func(t *testing.T) {
		t.Run("prices from category and issues token", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")

				require.NoError(t, err)
				require.Equal(t, models.ListingStatusAwaitingConfirmation, listing.Status)
				require.True(t, listing.UnitPrice.Equal(decimal.NewFromInt(10)), "price comes from the category, not the seller")
				require.NotEmpty(t, listing.Token)
			})
		})

		t.Run("unknown category", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				_, err := s.Submit(t.Context(), sellerID, "+15550001", "no-such")

				require.ErrorIs(t, err, apperrors.ErrCategoryNotFound)
			})
		})
	})

	t.Run("Confirm", func(t *testing.T) {
		withTx(t, func(s *Service, _ repository.Storage) {
			listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
			require.NoError(t, err)

			confirmed, err := s.Confirm(t.Context(), listing.Token, sellerID)

			require.NoError(t, err)
			require.Equal(t, models.ListingStatusVerified, confirmed.Status)

			_, err = s.Confirm(t.Context(), listing.Token, sellerID)
			require.ErrorIs(t, err, apperrors.ErrTokenNotFound, "token is single use")
		})
	})

	t.Run("Approve", func(t *testing.T) {
		t.Run("adds the number to inventory", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
				require.NoError(t, err)
				_, err = s.Confirm(t.Context(), listing.Token, sellerID)
				require.NoError(t, err)

				approved, err := s.Approve(t.Context(), listing.ID, adminID)

				require.NoError(t, err)
				require.Equal(t, models.ListingStatusApproved, approved.Status)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 1, available, "approved listing becomes sellable stock")
			})
		})

		t.Run("non admin rejected", func(t *testing.T) {
			withTx(t, func(s *Service, _ repository.Storage) {
				listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
				require.NoError(t, err)
				_, err = s.Confirm(t.Context(), listing.Token, sellerID)
				require.NoError(t, err)

				_, err = s.Approve(t.Context(), listing.ID, sellerID)

				require.ErrorIs(t, err, apperrors.ErrUnauthorized)
			})
		})

		t.Run("unconfirmed listing rejected", func(t *testing.T) {
			withTx(t, func(s *Service, storage repository.Storage) {
				listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
				require.NoError(t, err)

				_, err = s.Approve(t.Context(), listing.ID, adminID)

				require.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 0, available, "unapproved listing must not reach inventory")
			})
		})
	})

	t.Run("Reject", func(t *testing.T) {
		withTx(t, func(s *Service, storage repository.Storage) {
			listing, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
			require.NoError(t, err)
			_, err = s.Confirm(t.Context(), listing.Token, sellerID)
			require.NoError(t, err)

			rejected, err := s.Reject(t.Context(), listing.ID, adminID)

			require.NoError(t, err)
			require.Equal(t, models.ListingStatusRejected, rejected.Status)

			_, err = s.Approve(t.Context(), listing.ID, adminID)
			require.ErrorIs(t, err, apperrors.ErrAlreadyProcessed, "decision is final")

			available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
			require.NoError(t, err)
			require.Equal(t, 0, available)
		})
	})

	t.Run("ListVerified", func(t *testing.T) {
		withTx(t, func(s *Service, _ repository.Storage) {
			first, err := s.Submit(t.Context(), sellerID, "+15550001", "us-telegram")
			require.NoError(t, err)
			_, err = s.Submit(t.Context(), sellerID, "+15550002", "us-telegram")
			require.NoError(t, err)
			_, err = s.Confirm(t.Context(), first.Token, sellerID)
			require.NoError(t, err)

			verified, err := s.ListVerified(t.Context())

			require.NoError(t, err)
			require.Len(t, verified, 1)
			require.Equal(t, first.ID, verified[0].ID)
		})
	})
}
