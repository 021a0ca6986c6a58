package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/handlers/render"
	"github.com/nmarkelov/simshop/internal/logger"
	"github.com/nmarkelov/simshop/internal/models"
)

type redeemCodeResponse struct {
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	MaxClaims  int             `json:"max_claims"`
	ClaimCount int             `json:"claim_count"`
}

func redeemCodeToResponse(c models.RedeemCode) redeemCodeResponse {
	return redeemCodeResponse{
		Code:       c.Code,
		Amount:     c.Amount,
		MaxClaims:  c.MaxClaims,
		ClaimCount: c.ClaimCount,
	}
}

func handleClaimCode(redeemService redeemService, l logger.Logger) http.Handler {
	type request struct {
		AccountID int64  `json:"account_id" validate:"required"`
		Code      string `json:"code" validate:"required"`
	}

	type response struct {
		Credited decimal.Decimal `json:"credited"`
		Balance  decimal.Decimal `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		code, account, err := redeemService.Claim(r.Context(), req.Code, req.AccountID)

		switch {
		case err == nil:
			render.JSON(w, response{Credited: code.Amount, Balance: account.Balance})
		case errors.Is(err, apperrors.ErrCodeNotFound):
			render.ServiceError(w, "Redeem code not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrLimitReached):
			render.ServiceError(w, "Redeem code exhausted", http.StatusConflict)
		case errors.Is(err, apperrors.ErrAlreadyClaimed):
			render.ServiceError(w, "Code already claimed by this account", http.StatusConflict)
		default:
			l.Error("Failed to claim code", "error", err, "account_id", req.AccountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCreateCode(redeemService redeemService, l logger.Logger) http.Handler {
	type request struct {
		Amount    decimal.Decimal `json:"amount" validate:"required"`
		MaxClaims int             `json:"max_claims" validate:"required,gt=0"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		code, err := redeemService.CreateCode(r.Context(), req.Amount, req.MaxClaims)

		switch {
		case err == nil:
			render.JSONWithStatus(w, redeemCodeToResponse(code), http.StatusCreated)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrInvalidQuantity):
			render.ServiceError(w, "Claim limit must be positive", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to create redeem code", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListCodes(redeemService redeemService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		codes, err := redeemService.List(r.Context())
		if err != nil {
			l.Error("Failed to list redeem codes", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]redeemCodeResponse, 0, len(codes))
		for _, c := range codes {
			response = append(response, redeemCodeToResponse(c))
		}
		render.JSON(w, response)
	})
}
