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

type accountResponse struct {
	ID       int64           `json:"id"`
	Username string          `json:"username,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}

func accountToResponse(a models.Account) accountResponse {
	return accountResponse{
		ID:       a.ID,
		Username: a.Username,
		Balance:  a.Balance,
	}
}

func handleRegister(accountService accountService, l logger.Logger) http.Handler {
	type request struct {
		AccountID  int64  `json:"account_id" validate:"required"`
		Username   string `json:"username"`
		ReferrerID *int64 `json:"referrer_id,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := accountService.Register(r.Context(), req.AccountID, req.Username, req.ReferrerID)
		if err != nil {
			l.Error("Failed to register account", "error", err, "account_id", req.AccountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, accountToResponse(account))
	})
}

func handleBalance(accountService accountService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		account, err := accountService.GetBalance(r.Context(), accountID)
		if err != nil {
			l.Error("Failed to get balance", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, accountToResponse(account))
	})
}

func handleListTransactions(accountService accountService, l logger.Logger) http.Handler {
	type transaction struct {
		ID          uuid.UUID       `json:"id"`
		ProcessedAt time.Time       `json:"processed_at"`
		Type        string          `json:"type"`
		Reason      string          `json:"reason"`
		Amount      decimal.Decimal `json:"amount"`
		ReferenceID *uuid.UUID      `json:"reference_id,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		var types []string
		if t := r.URL.Query().Get("type"); t != "" {
			types = []string{t}
		}

		trs, err := accountService.ListTransactions(r.Context(), accountID, types)
		if err != nil {
			l.Error("Failed to list transactions", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]transaction, 0, len(trs))
		for _, t := range trs {
			response = append(response, transaction{
				ID:          t.ID,
				ProcessedAt: t.ProcessedAt,
				Type:        t.Type,
				Reason:      t.Reason,
				Amount:      t.Amount,
				ReferenceID: t.ReferenceID,
			})
		}
		render.JSON(w, response)
	})
}

// handleAdminAdjust covers manual credit and debit with the same body shape
func handleAdminAdjust(accountService accountService, l logger.Logger, txType string) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		var account models.Account
		switch txType {
		case models.TransactionTypeCredit:
			account, err = accountService.Credit(r.Context(), accountID, req.Amount, models.TxReasonAdminAdjust, nil)
		default:
			account, err = accountService.Debit(r.Context(), accountID, req.Amount, models.TxReasonAdminAdjust, nil)
		}

		switch {
		case err == nil:
			render.JSON(w, accountToResponse(account))
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Amount must be positive", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
		case errors.Is(err, apperrors.ErrAccountNotFound):
			render.ServiceError(w, "Account not found", http.StatusNotFound)
		default:
			l.Error("Failed to adjust balance", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
