package apperrors

import (
	"errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")

	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInventoryShortfall = errors.New("not enough items in stock")
	ErrItemNotFound       = errors.New("inventory item not found")
	ErrCategoryNotFound   = errors.New("category not found")

	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyFulfilled = errors.New("order already fulfilled")
	ErrAlreadyCancelled = errors.New("order already cancelled")
	ErrAlreadyProcessed = errors.New("already processed")

	ErrRechargeNotFound = errors.New("recharge request not found")
	ErrUnauthorized     = errors.New("caller is not authorized")

	ErrCodeNotFound   = errors.New("redeem code not found")
	ErrLimitReached   = errors.New("redeem code claim limit reached")
	ErrAlreadyClaimed = errors.New("redeem code already claimed by this account")
	ErrCodeExists     = errors.New("redeem code already exists")

	ErrListingNotFound = errors.New("listing not found")
	ErrTokenNotFound   = errors.New("confirmation token not found or already used")
)
