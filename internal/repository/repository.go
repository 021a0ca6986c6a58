package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Get account by external platform id, creating a zero-balance record if
	// none exists. Never fails for a missing account.
	GetOrCreate(ctx context.Context, id int64, username string) (models.Account, error)

	// Get account by id
	// If account not found must return apperrors.ErrAccountNotFound
	Get(ctx context.Context, id int64) (models.Account, error)

	// Set the referrer for an account. Returns true only when the referrer was
	// actually recorded (account had none before and referrer != account).
	SetReferrer(ctx context.Context, id int64, referrerID int64) (bool, error)

	// Apply a balance mutation as a single conditional update.
	// Debits must fail with apperrors.ErrInsufficientFunds when the guarded
	// update matches no row but the account exists; a missing account is
	// apperrors.ErrAccountNotFound.
	UpdateBalance(ctx context.Context, t models.Transaction) (models.Account, error)

	// Record the audit row for a balance mutation
	CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)

	// List transactions, newest first, optionally filtered by type
	ListTransactions(ctx context.Context, accountID int64, types []string) ([]models.Transaction, error)
}

// Inventory repository interface
type InventoryRepo interface {
	// Add a new item to the pool
	AddItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error)

	// Claim up to quantity available items in category for the given order,
	// marking them reserved. May return fewer items than requested; the caller
	// decides whether to abort. Concurrent reservations never claim the same
	// item (claims go through FOR UPDATE SKIP LOCKED).
	ReserveBatch(ctx context.Context, category string, quantity int, orderID uuid.UUID) ([]models.InventoryItem, error)

	// Return a reserved item to the pool
	// If item not found must return apperrors.ErrItemNotFound
	Release(ctx context.Context, itemID uuid.UUID) error

	// Permanently consume an item
	MarkUsed(ctx context.Context, itemID uuid.UUID) error

	// Release / consume every item reserved for the order, returning the count
	ReleaseByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	MarkUsedByOrder(ctx context.Context, orderID uuid.UUID) (int, error)

	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryItem, error)
	CountAvailable(ctx context.Context, category string) (int, error)
}

// Category repository interface
type CategoryRepo interface {
	// Create the category or update its price
	SetPrice(ctx context.Context, name string, price decimal.Decimal) (models.Category, error)

	// If category not found must return apperrors.ErrCategoryNotFound
	Get(ctx context.Context, name string) (models.Category, error)

	List(ctx context.Context) ([]models.Category, error)
}

type ListOrdersOpts struct {
	Statuses []string
	// Only orders whose deadline is before this moment (zero means no filter)
	DeadlineBefore time.Time
	Limit          int
}

// Order repository interface
type OrderRepo interface {
	Create(ctx context.Context, o models.Order) (models.Order, error)

	// If order not found must return apperrors.ErrOrderNotFound
	Get(ctx context.Context, id uuid.UUID) (models.Order, error)

	ListByAccount(ctx context.Context, accountID int64) ([]models.Order, error)
	List(ctx context.Context, opts ListOrdersOpts) ([]models.Order, error)

	// Move the order out of awaiting_fulfillment. This is the sole arbiter of
	// the cancel/fulfill/expire race: the conditional update matches only
	// while the order is still awaiting, so exactly one caller wins.
	// When the order has already left awaiting the error reports the state it
	// is in: ErrAlreadyFulfilled, ErrAlreadyCancelled or ErrAlreadyProcessed.
	TransitionFromAwaiting(ctx context.Context, id uuid.UUID, newStatus string, proof string) (models.Order, error)

	// Attach the provider activation id; allowed only while awaiting
	SetExternalID(ctx context.Context, id uuid.UUID, externalID string) (models.Order, error)
}

// Recharge repository interface
type RechargeRepo interface {
	Create(ctx context.Context, r models.RechargeRequest) (models.RechargeRequest, error)

	// If request not found must return apperrors.ErrRechargeNotFound
	Get(ctx context.Context, id uuid.UUID) (models.RechargeRequest, error)

	ListPending(ctx context.Context) ([]models.RechargeRequest, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.RechargeRequest, error)

	// Move the request out of pending; repeated calls must report
	// apperrors.ErrAlreadyProcessed, never apply twice
	TransitionFromPending(ctx context.Context, id uuid.UUID, newStatus string, approverID int64, finalAmount *decimal.Decimal) (models.RechargeRequest, error)
}

// Redeem code repository interface
type RedeemRepo interface {
	// If the code exists already must return apperrors.ErrCodeExists
	Create(ctx context.Context, code models.RedeemCode) (models.RedeemCode, error)

	// If code not found must return apperrors.ErrCodeNotFound
	Get(ctx context.Context, code string) (models.RedeemCode, error)

	List(ctx context.Context) ([]models.RedeemCode, error)

	// Claim the code for the account as one conditional update: the claim
	// succeeds only while claim_count < max_claims and the account is not in
	// the claimer set. Failures are reported as ErrCodeNotFound,
	// ErrLimitReached or ErrAlreadyClaimed.
	Claim(ctx context.Context, code string, accountID int64) (models.RedeemCode, error)
}

// Listing repository interface
type ListingRepo interface {
	Create(ctx context.Context, l models.Listing) (models.Listing, error)

	// If listing not found must return apperrors.ErrListingNotFound
	Get(ctx context.Context, id uuid.UUID) (models.Listing, error)

	ListByStatus(ctx context.Context, status string) ([]models.Listing, error)

	// Verify ownership: moves awaiting_confirmation -> verified by token.
	// A missing or spent token is apperrors.ErrTokenNotFound.
	ConfirmByToken(ctx context.Context, token string, confirmerID int64) (models.Listing, error)

	// Move a verified listing to approved or rejected.
	// Repeated calls must report apperrors.ErrAlreadyProcessed.
	TransitionFromVerified(ctx context.Context, id uuid.UUID, newStatus string) (models.Listing, error)
}

// Storage aggregates the repositories sharing one connection or transaction
type Storage interface {
	Account() AccountRepo
	Inventory() InventoryRepo
	Category() CategoryRepo
	Order() OrderRepo
	Recharge() RechargeRepo
	Redeem() RedeemRepo
	Listing() ListingRepo

	// Run fn against a transaction-backed storage. Committed when fn returns
	// nil, rolled back otherwise.
	InTx(ctx context.Context, fn func(Storage) error) error
}
