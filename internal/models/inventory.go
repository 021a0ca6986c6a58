package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ItemStatusAvailable = "available"
	ItemStatusReserved  = "reserved"
	ItemStatusUsed      = "used"
)

// InventoryItem is a sellable unit: a virtual phone number with its credential
// material. Consumed items are kept with status 'used' and a reference to the
// order that consumed them, so the purchase history stays auditable.
type InventoryItem struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Category  string
	Number    string
	Session   string
	Password  string
	Status    string
	UnitPrice decimal.Decimal
	OrderID   *uuid.UUID
}

// Category groups items by country/service and carries the unit price applied
// to new listings and purchases.
type Category struct {
	Name      string
	UnitPrice decimal.Decimal
}
