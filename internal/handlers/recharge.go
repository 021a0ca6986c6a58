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

type rechargeResponse struct {
	ID            uuid.UUID        `json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	AccountID     int64            `json:"account_id"`
	ClaimedAmount decimal.Decimal  `json:"claimed_amount"`
	FinalAmount   *decimal.Decimal `json:"final_amount,omitempty"`
	Status        string           `json:"status"`
}

func rechargeToResponse(req models.RechargeRequest) rechargeResponse {
	return rechargeResponse{
		ID:            req.ID,
		CreatedAt:     req.CreatedAt,
		AccountID:     req.AccountID,
		ClaimedAmount: req.ClaimedAmount,
		FinalAmount:   req.FinalAmount,
		Status:        req.Status,
	}
}

func handleSubmitRecharge(rechargeService rechargeService, l logger.Logger) http.Handler {
	type request struct {
		AccountID int64           `json:"account_id" validate:"required"`
		Amount    decimal.Decimal `json:"amount" validate:"required"`
		ProofRef  string          `json:"proof_ref" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		recharge, err := rechargeService.Submit(r.Context(), req.AccountID, req.Amount, req.ProofRef)

		switch {
		case err == nil:
			render.JSONWithStatus(w, rechargeToResponse(recharge), http.StatusCreated)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to submit recharge", "error", err, "account_id", req.AccountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleApproveRecharge(rechargeService rechargeService, l logger.Logger) http.Handler {
	type request struct {
		ApproverID int64           `json:"approver_id" validate:"required"`
		Amount     decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		recharge, err := rechargeService.Approve(r.Context(), requestID, req.ApproverID, req.Amount)

		switch {
		case err == nil:
			render.JSON(w, rechargeToResponse(recharge))
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Not an admin", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrRechargeNotFound):
			render.ServiceError(w, "Recharge request not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyProcessed):
			render.ServiceError(w, "Request already processed", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to approve recharge", "error", err, "request_id", requestID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeclineRecharge(rechargeService rechargeService, l logger.Logger) http.Handler {
	type request struct {
		ApproverID int64 `json:"approver_id" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID, ok := pathUUID(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		recharge, err := rechargeService.Decline(r.Context(), requestID, req.ApproverID)

		switch {
		case err == nil:
			render.JSON(w, rechargeToResponse(recharge))
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Not an admin", http.StatusForbidden)
		case errors.Is(err, apperrors.ErrRechargeNotFound):
			render.ServiceError(w, "Recharge request not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrAlreadyProcessed):
			render.ServiceError(w, "Request already processed", http.StatusConflict)
		default:
			l.Error("Failed to decline recharge", "error", err, "request_id", requestID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListPendingRecharges(rechargeService rechargeService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests, err := rechargeService.ListPending(r.Context())
		if err != nil {
			l.Error("Failed to list pending recharges", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]rechargeResponse, 0, len(requests))
		for _, req := range requests {
			response = append(response, rechargeToResponse(req))
		}
		render.JSON(w, response)
	})
}

func handleListAccountRecharges(rechargeService rechargeService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		requests, err := rechargeService.ListByAccount(r.Context(), accountID)
		if err != nil {
			l.Error("Failed to list recharges", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]rechargeResponse, 0, len(requests))
		for _, req := range requests {
			response = append(response, rechargeToResponse(req))
		}
		render.JSON(w, response)
	})
}
