package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RedeemCode is a shared promotional credit voucher. Exhausted codes are kept
// as history and reject further claims.
type RedeemCode struct {
	Code       string
	CreatedAt  time.Time
	Amount     decimal.Decimal
	MaxClaims  int
	ClaimCount int
	ClaimedBy  []int64
}
