package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/convstate"
	"github.com/nmarkelov/simshop/internal/handlers/middleware"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Config struct {
	// ServiceToken admits the bot frontend, AdminToken the admin surface
	ServiceToken string
	AdminToken   string
}

func NewRouter(
	config Config,
	accountService accountService,
	orderService orderService,
	rechargeService rechargeService,
	redeemService redeemService,
	listingService listingService,
	catalogService catalogService,
	conv convStore,
	registry *prometheus.Registry,
	logger logger.Logger,
) http.Handler {
	api := http.NewServeMux()

	api.Handle("POST /accounts/register", handleRegister(accountService, logger))
	api.Handle("GET /accounts/{id}/balance", handleBalance(accountService, logger))
	api.Handle("GET /accounts/{id}/transactions", handleListTransactions(accountService, logger))
	api.Handle("GET /accounts/{id}/orders", handleListAccountOrders(orderService, logger))
	api.Handle("GET /accounts/{id}/recharges", handleListAccountRecharges(rechargeService, logger))

	api.Handle("PUT /accounts/{id}/conversation", handleSetConversation(conv, logger))
	api.Handle("GET /accounts/{id}/conversation", handleGetConversation(conv, logger))
	api.Handle("DELETE /accounts/{id}/conversation", handleClearConversation(conv, logger))

	api.Handle("POST /orders", handleCreateOrder(orderService, logger))
	api.Handle("GET /orders/{id}", handleGetOrder(orderService, logger))
	api.Handle("GET /orders/{id}/items", handleOrderItems(orderService, logger))
	api.Handle("POST /orders/{id}/cancel", handleCancelOrder(orderService, logger))

	api.Handle("POST /recharges", handleSubmitRecharge(rechargeService, logger))
	api.Handle("POST /redeem", handleClaimCode(redeemService, logger))

	api.Handle("POST /listings", handleSubmitListing(listingService, logger))
	api.Handle("POST /listings/confirm", handleConfirmListing(listingService, logger))

	api.Handle("GET /categories", handleListCategories(catalogService, logger))
	api.Handle("GET /categories/{name}/stock", handleCategoryStock(catalogService, logger))

	admin := http.NewServeMux()

	admin.Handle("POST /accounts/{id}/credit", handleAdminAdjust(accountService, logger, models.TransactionTypeCredit))
	admin.Handle("POST /accounts/{id}/debit", handleAdminAdjust(accountService, logger, models.TransactionTypeDebit))

	admin.Handle("GET /recharges", handleListPendingRecharges(rechargeService, logger))
	admin.Handle("POST /recharges/{id}/approve", handleApproveRecharge(rechargeService, logger))
	admin.Handle("POST /recharges/{id}/decline", handleDeclineRecharge(rechargeService, logger))

	admin.Handle("POST /redeem-codes", handleCreateCode(redeemService, logger))
	admin.Handle("GET /redeem-codes", handleListCodes(redeemService, logger))

	admin.Handle("GET /listings", handleListVerifiedListings(listingService, logger))
	admin.Handle("POST /listings/{id}/approve", handleApproveListing(listingService, logger))
	admin.Handle("POST /listings/{id}/reject", handleRejectListing(listingService, logger))

	admin.Handle("PUT /categories/{name}", handleSetPrice(catalogService, logger))
	admin.Handle("POST /inventory", handleAddItem(catalogService, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", chain(api, middleware.TokenAuth(config.ServiceToken))))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", chain(admin, middleware.TokenAuth(config.AdminToken))))
	root.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return chain(root,
		middleware.LoggerMiddleware(logger),
	)
}

type accountService interface {
	// Register account, applying the one-time referral bonus when referrerID
	// is set
	Register(ctx context.Context, accountID int64, username string, referrerID *int64) (models.Account, error)

	// Get account with balance, creating it if needed
	GetBalance(ctx context.Context, accountID int64) (models.Account, error)

	// Manual balance adjustments
	// Debit has to return apperrors.ErrInsufficientFunds when the balance
	// would go negative
	Credit(ctx context.Context, accountID int64, amount decimal.Decimal, reason string, referenceID *uuid.UUID) (models.Account, error)
	Debit(ctx context.Context, accountID int64, amount decimal.Decimal, reason string, referenceID *uuid.UUID) (models.Account, error)

	ListTransactions(ctx context.Context, accountID int64, types []string) ([]models.Transaction, error)
}

type orderService interface {
	Create(ctx context.Context, accountID int64, category string, quantity int) (models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (models.Order, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]models.InventoryItem, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.Order, error)
}

type rechargeService interface {
	Submit(ctx context.Context, accountID int64, claimedAmount decimal.Decimal, proofRef string) (models.RechargeRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, approverID int64, finalAmount decimal.Decimal) (models.RechargeRequest, error)
	Decline(ctx context.Context, requestID uuid.UUID, approverID int64) (models.RechargeRequest, error)
	ListPending(ctx context.Context) ([]models.RechargeRequest, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.RechargeRequest, error)
}

type redeemService interface {
	CreateCode(ctx context.Context, amount decimal.Decimal, maxClaims int) (models.RedeemCode, error)
	Claim(ctx context.Context, code string, accountID int64) (models.RedeemCode, models.Account, error)
	List(ctx context.Context) ([]models.RedeemCode, error)
}

type listingService interface {
	Submit(ctx context.Context, sellerID int64, number string, category string) (models.Listing, error)
	Confirm(ctx context.Context, token string, confirmerID int64) (models.Listing, error)
	Approve(ctx context.Context, listingID uuid.UUID, approverID int64) (models.Listing, error)
	Reject(ctx context.Context, listingID uuid.UUID, approverID int64) (models.Listing, error)
	ListVerified(ctx context.Context) ([]models.Listing, error)
}

type catalogService interface {
	SetPrice(ctx context.Context, name string, price decimal.Decimal) (models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Stock(ctx context.Context, category string) (int, error)
	AddItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error)
}

type convStore interface {
	Set(ctx context.Context, accountID int64, state convstate.State) error
	Get(ctx context.Context, accountID int64) (convstate.State, error)
	Clear(ctx context.Context, accountID int64) error
}
