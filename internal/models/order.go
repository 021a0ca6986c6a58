package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusAwaiting  = "awaiting_fulfillment"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

type Order struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	ModifiedAt time.Time
	AccountID  int64
	Category   string
	Quantity   int
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
	Status     string
	Deadline   time.Time
	// Proof holds the fulfillment evidence (the delivered OTP message id or
	// code reference). Empty until the order is fulfilled.
	Proof string
	// ExternalID is the provider activation id used by the fulfillment driver.
	// Nil until a number has been requested from the provider.
	ExternalID *string
}
