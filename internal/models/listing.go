package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ListingStatusAwaitingConfirmation = "awaiting_confirmation"
	ListingStatusVerified             = "verified"
	ListingStatusApproved             = "approved"
	ListingStatusRejected             = "rejected"
)

// Listing is a seller-submitted number going through the sell flow:
// awaiting_confirmation -> verified (seller proves ownership with the token)
// -> approved (admin, ingested into inventory) | rejected.
type Listing struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	SellerID    int64
	Number      string
	Category    string
	UnitPrice   decimal.Decimal
	Status      string
	Token       string
	ConfirmedBy *int64
}
