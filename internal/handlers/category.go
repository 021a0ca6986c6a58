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

type categoryResponse struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func handleSetPrice(catalogService catalogService, l logger.Logger) http.Handler {
	type request struct {
		UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if name == "" {
			render.ServiceError(w, "Category name required", http.StatusBadRequest)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		cat, err := catalogService.SetPrice(r.Context(), name, req.UnitPrice)

		switch {
		case err == nil:
			render.JSON(w, categoryResponse{Name: cat.Name, UnitPrice: cat.UnitPrice})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Price must be positive", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to set category price", "error", err, "category", name)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListCategories(catalogService catalogService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cats, err := catalogService.List(r.Context())
		if err != nil {
			l.Error("Failed to list categories", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]categoryResponse, 0, len(cats))
		for _, c := range cats {
			response = append(response, categoryResponse{Name: c.Name, UnitPrice: c.UnitPrice})
		}
		render.JSON(w, response)
	})
}

func handleCategoryStock(catalogService catalogService, l logger.Logger) http.Handler {
	type response struct {
		Category  string `json:"category"`
		Available int    `json:"available"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		available, err := catalogService.Stock(r.Context(), name)

		switch {
		case err == nil:
			render.JSON(w, response{Category: name, Available: available})
		case errors.Is(err, apperrors.ErrCategoryNotFound):
			render.ServiceError(w, "Category not found", http.StatusNotFound)
		default:
			l.Error("Failed to count stock", "error", err, "category", name)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAddItem(catalogService catalogService, l logger.Logger) http.Handler {
	type request struct {
		Category string `json:"category" validate:"required"`
		Number   string `json:"number" validate:"required"`
		Session  string `json:"session"`
		Password string `json:"password"`
	}

	type response struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Number   string `json:"number"`
		Status   string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		item, err := catalogService.AddItem(r.Context(), models.InventoryItem{
			Category: req.Category,
			Number:   req.Number,
			Session:  req.Session,
			Password: req.Password,
		})

		switch {
		case err == nil:
			render.JSONWithStatus(w, response{
				ID:       item.ID.String(),
				Category: item.Category,
				Number:   item.Number,
				Status:   item.Status,
			}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrCategoryNotFound):
			render.ServiceError(w, "Category not found", http.StatusNotFound)
		default:
			l.Error("Failed to add inventory item", "error", err, "category", req.Category)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
