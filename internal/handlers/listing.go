package handlers

import (
	"context"
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

type listingResponse struct {
	ID        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	SellerID  int64           `json:"seller_id"`
	Number    string          `json:"number"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Status    string          `json:"status"`
	Token     string          `json:"token,omitempty"`
}

func listingToResponse(l models.Listing, withToken bool) listingResponse {
	response := listingResponse{
		ID:        l.ID,
		CreatedAt: l.CreatedAt,
		SellerID:  l.SellerID,
		Number:    l.Number,
		Category:  l.Category,
		UnitPrice: l.UnitPrice,
		Status:    l.Status,
	}
	// The token proves ownership, so it goes only to the seller on submit
	if withToken {
		response.Token = l.Token
	}
	return response
}

func handleSubmitListing(listingService listingService, l logger.Logger) http.Handler {
	type request struct {
		SellerID int64  `json:"seller_id" validate:"required"`
		Number   string `json:"number" validate:"required"`
		Category string `json:"category" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		listing, err := listingService.Submit(r.Context(), req.SellerID, req.Number, req.Category)

		switch {
		case err == nil:
			render.JSONWithStatus(w, listingToResponse(listing, true), http.StatusCreated)
		case errors.Is(err, apperrors.ErrCategoryNotFound):
			render.ServiceError(w, "Category not found", http.StatusNotFound)
		default:
			l.Error("Failed to submit listing", "error", err, "seller_id", req.SellerID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleConfirmListing(listingService listingService, l logger.Logger) http.Handler {
	type request struct {
		Token       string `json:"token" validate:"required"`
		ConfirmerID int64  `json:"confirmer_id" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		listing, err := listingService.Confirm(r.Context(), req.Token, req.ConfirmerID)

		switch {
		case err == nil:
			render.JSON(w, listingToResponse(listing, false))
		case errors.Is(err, apperrors.ErrTokenNotFound):
			render.ServiceError(w, "Token not found or already used", http.StatusNotFound)
		default:
			l.Error("Failed to confirm listing", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleApproveListing(listingService listingService, l logger.Logger) http.Handler {
	return decideListing(listingService.Approve, l, "approve")
}

func handleRejectListing(listingService listingService, l logger.Logger) http.Handler {
	return decideListing(listingService.Reject, l, "reject")
}

func decideListing(decide func(ctx context.Context, listingID uuid.UUID, approverID int64) (models.Listing, error), l logger.Logger, action string) http.Handler {
	type request struct {
		ApproverID int64 `json:"approver_id" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listingID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		listing, err := decide(r.Context(), listingID, req.ApproverID)

		switch {
		case err == nil:
			render.JSON(w, listingToResponse(listing, false))
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Not an admin", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrListingNotFound):
			render.ServiceError(w, "Listing not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyProcessed):
			render.ServiceError(w, "Listing already processed", http.StatusConflict)
		default:
			l.Error("Failed to decide listing", "error", err, "listing_id", listingID, "action", action)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListVerifiedListings(listingService listingService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listings, err := listingService.ListVerified(r.Context())
		if err != nil {
			l.Error("Failed to list listings", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]listingResponse, 0, len(listings))
		for _, listing := range listings {
			response = append(response, listingToResponse(listing, false))
		}
		render.JSON(w, response)
	})
}
