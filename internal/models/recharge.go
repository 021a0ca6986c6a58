package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RechargeStatusPending  = "pending"
	RechargeStatusApproved = "approved"
	RechargeStatusDeclined = "declined"
)

// RechargeRequest is a user's claim of an external payment. ProofRef is an
// opaque handle to the payment screenshot, stored and forwarded but never
// interpreted here. Balance is credited only on approval.
type RechargeRequest struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	AccountID     int64
	ClaimedAmount decimal.Decimal
	// FinalAmount is what the approver actually credited. Nil until approved.
	FinalAmount *decimal.Decimal
	ProofRef    string
	Status      string
	ApproverID  *int64
}
