package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
)

// Service manages categories and the raw inventory pool. Admin gating happens
// at the transport layer; everything here is trusted.
type Service struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *Service {
	return &Service{storage: storage}
}

func (s *Service) SetPrice(ctx context.Context, name string, price decimal.Decimal) (models.Category, error) {
	if !price.IsPositive() {
		return models.Category{}, apperrors.ErrInvalidAmount
	}

	return s.storage.Category().SetPrice(ctx, name, price)
}

func (s *Service) List(ctx context.Context) ([]models.Category, error) {
	return s.storage.Category().List(ctx)
}

// Stock returns how many items are available for purchase in the category
func (s *Service) Stock(ctx context.Context, category string) (int, error) {
	if _, err := s.storage.Category().Get(ctx, category); err != nil {
		return 0, err
	}

	return s.storage.Inventory().CountAvailable(ctx, category)
}

// AddItem puts a new item into the pool, priced by its category
func (s *Service) AddItem(ctx context.Context, item models.InventoryItem) (models.InventoryItem, error) {
	cat, err := s.storage.Category().Get(ctx, item.Category)
	if err != nil {
		return models.InventoryItem{}, err
	}

	item.UnitPrice = cat.UnitPrice
	return s.storage.Inventory().AddItem(ctx, item)
}
