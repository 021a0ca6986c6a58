package recharge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/notify"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/service/ledger"
)

type Config struct {
	// Identities allowed to approve or decline requests
	AdminIDs []int64
}

type Service struct {
	storage  repository.Storage
	metrics  *metrics.Metrics
	events   events.Publisher
	notifier notify.Notifier
	admins   map[int64]struct{}
}

func NewService(config Config, storage repository.Storage, m *metrics.Metrics, pub events.Publisher, notifier notify.Notifier) *Service {
	admins := make(map[int64]struct{}, len(config.AdminIDs))
	for _, id := range config.AdminIDs {
		admins[id] = struct{}{}
	}

	return &Service{
		storage:  storage,
		metrics:  m,
		events:   pub,
		notifier: notifier,
		admins:   admins,
	}
}

// Submit records the payment claim as pending. Nothing is credited here:
// the balance moves only when an admin approves (the optimistic
// credit-then-revert variant is deliberately not implemented).
func (s *Service) Submit(ctx context.Context, accountID int64, claimedAmount decimal.Decimal, proofRef string) (models.RechargeRequest, error) {
	var req models.RechargeRequest

	if !claimedAmount.IsPositive() {
		return req, apperrors.ErrInvalidAmount
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Account().GetOrCreate(ctx, accountID, ""); err != nil {
			return err
		}

		var err error
		req, err = store.Recharge().Create(ctx, models.RechargeRequest{
			AccountID:     accountID,
			ClaimedAmount: claimedAmount,
			ProofRef:      proofRef,
		})
		return err
	})
	if err != nil {
		return req, err
	}

	for adminID := range s.admins {
		s.notifier.Notify(ctx, adminID, fmt.Sprintf("New recharge request %s from account %d, claimed %s.", req.ID, accountID, claimedAmount))
	}

	return req, nil
}

// Approve credits finalAmount (the admin may adjust the claimed figure) and
// closes the request. The pending-status guard makes repeat approvals report
// ErrAlreadyProcessed instead of crediting twice.
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID, approverID int64, finalAmount decimal.Decimal) (models.RechargeRequest, error) {
	var req models.RechargeRequest

	if _, ok := s.admins[approverID]; !ok {
		return req, apperrors.ErrUnauthorized
	}
	if !finalAmount.IsPositive() {
		return req, apperrors.ErrInvalidAmount
	}

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		req, err = store.Recharge().TransitionFromPending(ctx, requestID, models.RechargeStatusApproved, approverID, &finalAmount)
		if err != nil {
			return err
		}

		_, err = ledger.Apply(ctx, store, models.Transaction{
			AccountID:   req.AccountID,
			Type:        models.TransactionTypeCredit,
			Reason:      models.TxReasonRecharge,
			Amount:      finalAmount,
			ReferenceID: &requestID,
		})
		return err
	})
	if err != nil {
		return req, err
	}

	s.metrics.RechargeDecided.WithLabelValues(models.RechargeStatusApproved).Inc()
	s.metrics.LedgerOps.WithLabelValues(models.TransactionTypeCredit, models.TxReasonRecharge).Inc()
	s.events.Publish(events.SubjectRechargeDecided, map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
		"amount":     finalAmount,
	})
	s.notifier.Notify(ctx, req.AccountID, fmt.Sprintf("Your payment of %s has been credited.", finalAmount))

	return req, nil
}

// Decline closes the request without touching the balance
func (s *Service) Decline(ctx context.Context, requestID uuid.UUID, approverID int64) (models.RechargeRequest, error) {
	var req models.RechargeRequest

	if _, ok := s.admins[approverID]; !ok {
		return req, apperrors.ErrUnauthorized
	}

	req, err := s.storage.Recharge().TransitionFromPending(ctx, requestID, models.RechargeStatusDeclined, approverID, nil)
	if err != nil {
		return req, err
	}

	s.metrics.RechargeDecided.WithLabelValues(models.RechargeStatusDeclined).Inc()
	s.events.Publish(events.SubjectRechargeDecided, map[string]any{
		"request_id": req.ID,
		"status":     req.Status,
	})
	s.notifier.Notify(ctx, req.AccountID, "Your payment request was declined by admin.")

	return req, nil
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (models.RechargeRequest, error) {
	return s.storage.Recharge().Get(ctx, requestID)
}

func (s *Service) ListPending(ctx context.Context) ([]models.RechargeRequest, error) {
	return s.storage.Recharge().ListPending(ctx)
}

func (s *Service) ListByAccount(ctx context.Context, accountID int64) ([]models.RechargeRequest, error) {
	return s.storage.Recharge().ListByAccount(ctx, accountID)
}
