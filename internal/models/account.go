package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeCredit = "credit"
	TransactionTypeDebit  = "debit"
)

// Reasons recorded on ledger transactions, kept as plain strings in storage.
const (
	TxReasonPurchase    = "purchase"
	TxReasonRefund      = "refund"
	TxReasonRecharge    = "recharge"
	TxReasonRedeem      = "redeem"
	TxReasonReferral    = "referral"
	TxReasonAdminAdjust = "admin_adjust"
)

// Account is a balance-holding identity keyed by the external platform user id.
// Accounts are created lazily on first interaction and never deleted.
type Account struct {
	ID         int64
	CreatedAt  time.Time
	Username   string
	Balance    decimal.Decimal
	ReferrerID *int64
}

// Transaction is the audit row written alongside every balance mutation.
type Transaction struct {
	ID          uuid.UUID
	ProcessedAt time.Time
	AccountID   int64
	Type        string
	Reason      string
	Amount      decimal.Decimal
	ReferenceID *uuid.UUID
}
