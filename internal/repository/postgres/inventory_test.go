package postgres

import (
	"sync"
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

func TestInventory(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, fn func(storage repository.Storage)) {
		testutil.InTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(NewStorage(tx))
		})
	}

	addItems := func(t *testing.T, storage repository.Storage, category string, count int) {
		t.Helper()
		for i := 0; i < count; i++ {
			_, err := storage.Inventory().AddItem(t.Context(), models.InventoryItem{
				Category:  category,
				Number:    uuid.NewString(),
				UnitPrice: decimal.NewFromInt(10),
			})
			require.NoError(t, err)
		}
	}

	t.Run("AddItem", func(t *testing.T) {
		inTx(t, func(storage repository.Storage) {
			item, err := storage.Inventory().AddItem(t.Context(), models.InventoryItem{
				Category:  "us-telegram",
				Number:    "+15550001",
				Session:   "sess",
				Password:  "pwd",
				UnitPrice: decimal.NewFromInt(10),
			})

			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, item.ID)
			require.Equal(t, models.ItemStatusAvailable, item.Status, "new item should be available")
			require.Nil(t, item.OrderID)
		})
	})

	t.Run("ReserveBatch", func(t *testing.T) {
		t.Run("reserves requested quantity", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 5)
				orderID := uuid.New()

				items, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 3, orderID)

				require.NoError(t, err)
				require.Len(t, items, 3)
				for _, item := range items {
					require.Equal(t, models.ItemStatusReserved, item.Status)
					require.NotNil(t, item.OrderID)
					require.Equal(t, orderID, *item.OrderID)
				}

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 2, available)
			})
		})

		t.Run("returns fewer when stock is short", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 2)

				items, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 5, uuid.New())

				require.NoError(t, err)
				require.Len(t, items, 2, "short stock should yield a partial batch, caller decides to abort")
			})
		})

		t.Run("ignores other categories", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 2)
				addItems(t, storage, "uk-whatsapp", 2)

				items, err := storage.Inventory().ReserveBatch(t.Context(), "uk-whatsapp", 5, uuid.New())

				require.NoError(t, err)
				require.Len(t, items, 2)
				for _, item := range items {
					require.Equal(t, "uk-whatsapp", item.Category)
				}
			})
		})
	})

	// Concurrent reservations run against the pool: SKIP LOCKED must hand
	// every item to at most one claimer
	t.Run("concurrent reservations never share items", func(t *testing.T) {
		storage := NewStorage(pg.Pool)
		addItems(t, storage, "race-cat", 6)

		const workers = 3
		results := make([][]models.InventoryItem, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				items, err := storage.Inventory().ReserveBatch(t.Context(), "race-cat", 4, uuid.New())
				require.NoError(t, err)
				results[i] = items
			}(i)
		}
		wg.Wait()

		seen := map[uuid.UUID]bool{}
		total := 0
		for _, items := range results {
			for _, item := range items {
				require.False(t, seen[item.ID], "item %s reserved by two orders", item.ID)
				seen[item.ID] = true
				total++
			}
		}
		require.Equal(t, 6, total, "every item should be claimed exactly once")
	})

	t.Run("Release and MarkUsed", func(t *testing.T) {
		t.Run("release returns item to the pool", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 1)
				items, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 1, uuid.New())
				require.NoError(t, err)

				err = storage.Inventory().Release(t.Context(), items[0].ID)
				require.NoError(t, err)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 1, available)
			})
		})

		t.Run("release of non reserved item fails", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				err := storage.Inventory().Release(t.Context(), uuid.New())

				require.ErrorIs(t, err, apperrors.ErrItemNotFound)
			})
		})

		t.Run("mark used consumes reserved item", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 1)
				items, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 1, uuid.New())
				require.NoError(t, err)

				err = storage.Inventory().MarkUsed(t.Context(), items[0].ID)
				require.NoError(t, err)

				// Used item must not come back as available
				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 0, available)

				err = storage.Inventory().Release(t.Context(), items[0].ID)
				require.ErrorIs(t, err, apperrors.ErrItemNotFound, "used item can't be released back")
			})
		})
	})

	t.Run("ByOrder operations", func(t *testing.T) {
		t.Run("release by order returns whole reservation", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 3)
				orderID := uuid.New()
				_, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 3, orderID)
				require.NoError(t, err)

				released, err := storage.Inventory().ReleaseByOrder(t.Context(), orderID)

				require.NoError(t, err)
				require.Equal(t, 3, released)

				available, err := storage.Inventory().CountAvailable(t.Context(), "us-telegram")
				require.NoError(t, err)
				require.Equal(t, 3, available)
			})
		})

		t.Run("mark used by order keeps items linked", func(t *testing.T) {
			inTx(t, func(storage repository.Storage) {
				addItems(t, storage, "us-telegram", 2)
				orderID := uuid.New()
				_, err := storage.Inventory().ReserveBatch(t.Context(), "us-telegram", 2, orderID)
				require.NoError(t, err)

				used, err := storage.Inventory().MarkUsedByOrder(t.Context(), orderID)
				require.NoError(t, err)
				require.Equal(t, 2, used)

				items, err := storage.Inventory().ListByOrder(t.Context(), orderID)
				require.NoError(t, err)
				require.Len(t, items, 2, "used items stay attached to the order for audit")
				for _, item := range items {
					require.Equal(t, models.ItemStatusUsed, item.Status)
				}
			})
		})
	})
}
