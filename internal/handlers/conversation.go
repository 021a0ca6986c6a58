package handlers

import (
	"errors"
	"net/http"

	"github.com/nmarkelov/simshop/internal/convstate"
	"github.com/nmarkelov/simshop/internal/handlers/render"
	"github.com/nmarkelov/simshop/internal/logger"
)

// Conversation state endpoints back the bot frontend's multi-step flows
// (awaiting payment screenshot, awaiting redeem code and so on).

func handleSetConversation(conv convStore, l logger.Logger) http.Handler {
	type request struct {
		Step string            `json:"step" validate:"required"`
		Data map[string]string `json:"data"`
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

		if err := conv.Set(r.Context(), accountID, convstate.State{Step: req.Step, Data: req.Data}); err != nil {
			l.Error("Failed to set conversation state", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleGetConversation(conv convStore, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		state, err := conv.Get(r.Context(), accountID)

		switch {
		case err == nil:
			render.JSON(w, state)
		case errors.Is(err, convstate.ErrNotFound):
			render.ServiceError(w, "No active conversation", http.StatusNotFound)
		default:
			l.Error("Failed to get conversation state", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleClearConversation(conv convStore, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := pathAccountID(w, r)
		if !ok {
			return
		}

		if err := conv.Clear(r.Context(), accountID); err != nil {
			l.Error("Failed to clear conversation state", "error", err, "account_id", accountID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
