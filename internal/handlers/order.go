package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/handlers/render"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/models"
)

type orderResponse struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	AccountID int64           `json:"account_id"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	Deadline  time.Time       `json:"deadline"`
	Proof     string          `json:"proof,omitempty"`
}

func orderToResponse(o models.Order) orderResponse {
	return orderResponse{
		ID:        o.ID,
		CreatedAt: o.CreatedAt,
		AccountID: o.AccountID,
		Category:  o.Category,
		Quantity:  o.Quantity,
		UnitPrice: o.UnitPrice,
		Total:     o.Total,
		Status:    o.Status,
		Deadline:  o.Deadline,
		Proof:     o.Proof,
	}
}

func handleCreateOrder(orderService orderService, l logger.Logger) http.Handler {
	type request struct {
		AccountID int64  `json:"account_id" validate:"required"`
		Category  string `json:"category" validate:"required"`
		Quantity  int    `json:"quantity" validate:"required,gt=0"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		order, err := orderService.Create(r.Context(), req.AccountID, req.Category, req.Quantity)

		switch {
		case err == nil:
			render.JSONWithStatus(w, orderToResponse(order), http.StatusCreated)
		case errors.Is(err, apperrors.ErrCategoryNotFound):
			render.ServiceError(w, "Category not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrInventoryShortfall):
			render.ServiceError(w, "Not enough items in stock", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInvalidQuantity):
			render.ServiceError(w, "Quantity must be positive", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to create order", "error", err, "account_id", req.AccountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleGetOrder(orderService orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		order, err := orderService.Get(r.Context(), orderID)

		switch {
		case err == nil:
			render.JSON(w, orderToResponse(order))
		case errors.Is(err, apperrors.ErrOrderNotFound):
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		default:
			l.Error("Failed to get order", "error", err, "order_id", orderID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCancelOrder(orderService orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		order, err := orderService.Cancel(r.Context(), orderID)

		switch {
		case err == nil:
			render.JSON(w, orderToResponse(order))
		case errors.Is(err, apperrors.ErrOrderNotFound):
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyFulfilled):
			render.ServiceError(w, "Order already fulfilled", http.StatusConflict)
		case errors.Is(err, apperrors.ErrAlreadyCancelled), errors.Is(err, apperrors.ErrAlreadyProcessed):
			render.ServiceError(w, "Order already processed", http.StatusConflict)
		default:
			l.Error("Failed to cancel order", "error", err, "order_id", orderID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleOrderItems(orderService orderService, l logger.Logger) http.Handler {
	type item struct {
		ID       uuid.UUID `json:"id"`
		Category string    `json:"category"`
		Number   string    `json:"number"`
		Session  string    `json:"session,omitempty"`
		Password string    `json:"password,omitempty"`
		Status   string    `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		items, err := orderService.Items(r.Context(), orderID)

		switch {
		case err == nil:
			response := make([]item, 0, len(items))
			for _, i := range items {
				response = append(response, item{
					ID:       i.ID,
					Category: i.Category,
					Number:   i.Number,
					Session:  i.Session,
					Password: i.Password,
					Status:   i.Status,
				})
			}
			render.JSON(w, response)
		case errors.Is(err, apperrors.ErrOrderNotFound):
			render.ServiceError(w, "Order not found", http.StatusNotFound)
		default:
			l.Error("Failed to list order items", "error", err, "order_id", orderID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListAccountOrders(orderService orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		orders, err := orderService.ListByAccount(r.Context(), accountID)
		if err != nil {
			l.Error("Failed to list orders", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			response = append(response, orderToResponse(o))
		}
		render.JSON(w, response)
	})
}
