package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nmarkelov/simshop/internal/handlers/render"
)

// pathAccountID reads the {id} path segment as an external platform account id
func pathAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		render.ServiceError(w, "Invalid account id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// pathUUID reads the {id} path segment as a uuid
func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
