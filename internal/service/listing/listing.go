package listing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository"
)

type Config struct {
	// Identities allowed to approve or reject listings
	AdminIDs []int64
}

type Service struct {
	storage  repository.Storage
	notifier notify.Notifier
	admins   map[int64]struct{}
}

func NewService(config Config, storage repository.Storage, notifier notify.Notifier) *Service {
	admins := make(map[int64]struct{}, len(config.AdminIDs))
	for _, id := range config.AdminIDs {
		admins[id] = struct{}{}
	}

	return &Service{
		storage:  storage,
		notifier: notifier,
		admins:   admins,
	}
}

// Submit opens a listing for a number the seller wants to sell. The price is
// assigned from the category, never chosen by the seller. The returned
// listing carries the ownership token the seller must send back from the
// account being sold.
func (s *Service) Submit(ctx context.Context, sellerID int64, number string, category string) (models.Listing, error) {
	var listing models.Listing

	cat, err := s.storage.Category().Get(ctx, category)
	if err != nil {
		return listing, err
	}

	token, err := generateToken()
	if err != nil {
		return listing, err
	}

	err = s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Account().GetOrCreate(ctx, sellerID, ""); err != nil {
			return err
		}

		var err error
		listing, err = store.Listing().Create(ctx, models.Listing{
			SellerID:  sellerID,
			Number:    number,
			Category:  category,
			UnitPrice: cat.UnitPrice,
			Token:     token,
		})
		return err
	})

	return listing, err
}

// Confirm proves ownership: the seller sends the token from the account
// being sold. Moves the listing to verified and pings the admins for review.
func (s *Service) Confirm(ctx context.Context, token string, confirmerID int64) (models.Listing, error) {
	listing, err := s.storage.Listing().ConfirmByToken(ctx, token, confirmerID)
	if err != nil {
		return listing, err
	}

	for adminID := range s.admins {
		s.notifier.Notify(ctx, adminID, fmt.Sprintf("Listing %s (%s, %s) verified and awaiting review.", listing.ID, listing.Number, listing.Category))
	}

	return listing, nil
}

// Approve ingests the verified listing into inventory at the category price
func (s *Service) Approve(ctx context.Context, listingID uuid.UUID, approverID int64) (models.Listing, error) {
	var listing models.Listing

	if _, ok := s.admins[approverID]; !ok {
		return listing, apperrors.ErrUnauthorized
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		listing, err = store.Listing().TransitionFromVerified(ctx, listingID, models.ListingStatusApproved)
		if err != nil {
			return err
		}

		_, err = store.Inventory().AddItem(ctx, models.InventoryItem{
			Category:  listing.Category,
			Number:    listing.Number,
			UnitPrice: listing.UnitPrice,
		})
		return err
	})
	if err != nil {
		return listing, err
	}

	s.notifier.Notify(ctx, listing.SellerID, fmt.Sprintf("Your listing %s was approved and is now live at %s.", listing.ID, listing.UnitPrice))

	return listing, nil
}

func (s *Service) Reject(ctx context.Context, listingID uuid.UUID, approverID int64) (models.Listing, error) {
	var listing models.Listing

	if _, ok := s.admins[approverID]; !ok {
		return listing, apperrors.ErrUnauthorized
	}

	listing, err := s.storage.Listing().TransitionFromVerified(ctx, listingID, models.ListingStatusRejected)
	if err != nil {
		return listing, err
	}

	s.notifier.Notify(ctx, listing.SellerID, fmt.Sprintf("Your listing %s was rejected by admin.", listing.ID))

	return listing, nil
}

func (s *Service) ListVerified(ctx context.Context) ([]models.Listing, error) {
	return s.storage.Listing().ListByStatus(ctx, models.ListingStatusVerified)
}

func generateToken() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}
