package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/repository/postgres"
	"github.com/nmarkelov/simshop/internal/service/ledger"
	"github.com/nmarkelov/simshop/internal/testutil"
)

func TestOrderService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	const buyerID = int64(1001)

	// Runs fn with a fresh service, a funded buyer and stocked inventory,
	// all rolled back at the end
	withTx := func(t *testing.T, balance int64, stock int, fn func(s *Service, storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			s := NewService(Config{FulfillmentWait: 15 * time.Minute}, storage, metrics.NewNoOp(), events.NewNoOp(), notify.NewNoOp(), logger.NewNoOp())

			_, err := storage.Category().SetPrice(t.Context(), "us-telegram", decimal.NewFromInt(10))
			require.NoError(t, err)

			_, err = storage.Account().GetOrCreate(t.Context(), buyerID, "buyer")
			require.NoError(t, err)
			if balance > 0 {
				_, err = ledger.Apply(t.Context(), storage, models.Transaction{
					AccountID: buyerID,
					Type:      models.TransactionTypeCredit,
					Reason:    models.TxReasonRecharge,
					Amount:    decimal.NewFromInt(balance),
				})
				require.NoError(t, err)
			}

			for i := 0; i < stock; i++ {
				_, err := storage.Inventory().AddItem(t.Context(), models.InventoryItem{
					Category:  "us-telegram",
					Number:    uuid.NewString(),
					UnitPrice: decimal.NewFromInt(10),
				})
				require.NoError(t, err)
			}

			fn(s, storage)
		})
	}

	balanceOf := func(t *testing.T, storage repository.Storage) decimal.Decimal {
		t.Helper()
		account, err := storage.Account().Get(t.Context(), buyerID)
		require.NoError(t, err)
		return account.Balance
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("charges and reserves", func(t *testing.T) {
			withTx(t, 100, 3, func(s *Service, storage repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 2)

				require.NoError(t, err)
				require.Equal(t, models.OrderStatusAwaiting, order.Status)
				require.True(t, order.Total.Equal(decimal.NewFromInt(20)), "total is quantity times category price")
				require.True(t, balanceOf(t, storage).Equal(decimal.NewFromInt(80)))

				items, err := storage.Inventory().ListByOrder(t.Context(), order.ID)
				require.NoError(t, err)
				require.Len(t, items, 2)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 1, available)
			})
		})

		t.Run("insufficient funds leaves stock untouched", func(t *testing.T) {
			withTx(t, 10, 3, func(s *Service, storage repository.Storage) {
				_, err := s.Create(t.Context(), buyerID, "us-telegram", 2)

				require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 3, available)
			})
		})

		t.Run("stock shortfall rolls the charge back", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, storage repository.Storage) {
				_, err := s.Create(t.Context(), buyerID, "us-telegram", 2)

				require.ErrorIs(t, err, apperrors.ErrInventoryShortfall)
				require.True(t, balanceOf(t, storage).Equal(decimal.NewFromInt(100)), "aborted purchase must not keep the debit")

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 1, available, "partial reservation must be rolled back")

				transactions, err := storage.Account().ListTransactions(t.Context(), buyerID, []string{models.TransactionTypeDebit})
				require.NoError(t, err)
				require.Empty(t, transactions, "no debit may survive an aborted purchase")
			})
		})

		t.Run("unknown category", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, _ repository.Storage) {
				_, err := s.Create(t.Context(), buyerID, "no-such", 1)

				require.ErrorIs(t, err, apperrors.ErrCategoryNotFound)
			})
		})

		t.Run("non positive quantity", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, _ repository.Storage) {
				_, err := s.Create(t.Context(), buyerID, "us-telegram", 0)

				require.ErrorIs(t, err, apperrors.ErrInvalidQuantity)
			})
		})
	})

	t.Run("Fulfill", func(t *testing.T) {
		t.Run("consumes items and records proof", func(t *testing.T) {
			withTx(t, 100, 2, func(s *Service, storage repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 2)
				require.NoError(t, err)

				got, err := s.Fulfill(t.Context(), order.ID, "code:777")

				require.NoError(t, err)
				require.Equal(t, models.OrderStatusFulfilled, got.Status)
				require.Equal(t, "code:777", got.Proof)

				items, err := storage.Inventory().ListByOrder(t.Context(), order.ID)
				require.NoError(t, err)
				for _, item := range items {
					require.Equal(t, models.ItemStatusUsed, item.Status, "fulfilled order consumes its reservation")
				}
			})
		})

		t.Run("second fulfill does not deliver twice", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, _ repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 1)
				require.NoError(t, err)

				_, err = s.Fulfill(t.Context(), order.ID, "code:1")
				require.NoError(t, err)

				got, err := s.Fulfill(t.Context(), order.ID, "code:2")

				require.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
				require.Equal(t, "code:1", got.Proof, "first delivery stands")
			})
		})
	})

	t.Run("Cancel", func(t *testing.T) {
		t.Run("refunds and releases stock", func(t *testing.T) {
			withTx(t, 100, 2, func(s *Service, storage repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 2)
				require.NoError(t, err)

				got, err := s.Cancel(t.Context(), order.ID)

				require.NoError(t, err)
				require.Equal(t, models.OrderStatusCancelled, got.Status)
				require.True(t, balanceOf(t, storage).Equal(decimal.NewFromInt(100)), "cancel refunds the full total")

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 2, available)
			})
		})

		t.Run("fulfilled order can't be cancelled", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, storage repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 1)
				require.NoError(t, err)
				_, err = s.Fulfill(t.Context(), order.ID, "code:1")
				require.NoError(t, err)

				_, err = s.Cancel(t.Context(), order.ID)

				require.ErrorIs(t, err, apperrors.ErrAlreadyFulfilled)
				require.True(t, balanceOf(t, storage).Equal(decimal.NewFromInt(90)), "no refund for a delivered order")
			})
		})
	})

	t.Run("Expire", func(t *testing.T) {
		t.Run("refund happens exactly once", func(t *testing.T) {
			withTx(t, 100, 1, func(s *Service, storage repository.Storage) {
				order, err := s.Create(t.Context(), buyerID, "us-telegram", 1)
				require.NoError(t, err)

				_, err = s.Cancel(t.Context(), order.ID)
				require.NoError(t, err)

				_, err = s.Expire(t.Context(), order.ID)

				require.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
				require.True(t, balanceOf(t, storage).Equal(decimal.NewFromInt(100)), "cancel and expire must not both refund")

				refunds, err := storage.Account().ListTransactions(t.Context(), buyerID, []string{models.TransactionTypeCredit})
				require.NoError(t, err)

				count := 0
				for _, tr := range refunds {
					if tr.Reason == models.TxReasonRefund {
						count++
					}
				}
				require.Equal(t, 1, count, "exactly one compensating credit")
			})
		})
	})

	t.Run("ListExpired", func(t *testing.T) {
		withTx(t, 100, 2, func(_ *Service, storage repository.Storage) {
			// A 1ns wait makes the order expired the moment it is created
			s := NewService(Config{FulfillmentWait: time.Nanosecond}, storage, metrics.NewNoOp(), events.NewNoOp(), notify.NewNoOp(), logger.NewNoOp())

			expired, err := s.Create(t.Context(), buyerID, "us-telegram", 1)
			require.NoError(t, err)

			orders, err := s.ListExpired(t.Context(), 10)

			require.NoError(t, err)
			require.Len(t, orders, 1)
			require.Equal(t, expired.ID, orders[0].ID)

			awaiting, err := s.ListAwaiting(t.Context(), 10)
			require.NoError(t, err)
			require.Len(t, awaiting, 1, "expired orders are still awaiting until swept")
		})
	})
}
