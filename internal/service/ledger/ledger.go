package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
)

// Apply runs a single balance mutation plus its audit row against the given
// storage. Callers that need the mutation inside a larger transaction (order
// creation, recharge approval, redeem claim) pass their tx-backed storage.
func Apply(ctx context.Context, store repository.Storage, t models.Transaction) (models.Account, error) {
	if !t.Amount.IsPositive() {
		return models.Account{}, apperrors.ErrInvalidAmount
	}

	account, err := store.Account().UpdateBalance(ctx, t)
	if err != nil {
		return account, err
	}

	if _, err := store.Account().CreateTransaction(ctx, t); err != nil {
		return account, fmt.Errorf("record transaction: %w", err)
	}

	return account, nil
}

type Config struct {
	// Bonus credited to the referrer when a referred account registers.
	// Zero disables referral bonuses.
	ReferralBonus decimal.Decimal
}

type Service struct {
	config  Config
	storage repository.Storage
	metrics *metrics.Metrics
	events  events.Publisher
}

func NewService(config Config, storage repository.Storage, m *metrics.Metrics, pub events.Publisher) *Service {
	return &Service{
		config:  config,
		storage: storage,
		metrics: m,
		events:  pub,
	}
}

// Register gets or creates the account and applies the one-time referral
// bonus when the account arrives through a referral link.
func (s *Service) Register(ctx context.Context, accountID int64, username string, referrerID *int64) (models.Account, error) {
	var account models.Account

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		account, err = store.Account().GetOrCreate(ctx, accountID, username)
		if err != nil {
			return err
		}

		if referrerID == nil || s.config.ReferralBonus.IsZero() {
			return nil
		}

		// The referrer may have never touched the service; the row must
		// exist before referrer_id can point at it
		if _, err := store.Account().GetOrCreate(ctx, *referrerID, ""); err != nil {
			return err
		}

		// SetReferrer succeeds at most once per account, so the bonus
		// cannot be farmed by re-registering
		set, err := store.Account().SetReferrer(ctx, accountID, *referrerID)
		if err != nil || !set {
			return err
		}

		_, err = Apply(ctx, store, models.Transaction{
			AccountID: *referrerID,
			Type:      models.TransactionTypeCredit,
			Reason:    models.TxReasonReferral,
			Amount:    s.config.ReferralBonus,
		})
		return err
	})
	if err != nil {
		return account, err
	}

	return account, nil
}

// GetBalance returns the account, creating a zero-balance record if none
// exists yet
func (s *Service) GetBalance(ctx context.Context, accountID int64) (models.Account, error) {
	return s.storage.Account().GetOrCreate(ctx, accountID, "")
}

func (s *Service) Credit(ctx context.Context, accountID int64, amount decimal.Decimal, reason string, referenceID *uuid.UUID) (models.Account, error) {
	var account models.Account

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Account().GetOrCreate(ctx, accountID, ""); err != nil {
			return err
		}

		var err error
		account, err = Apply(ctx, store, models.Transaction{
			AccountID:   accountID,
			Type:        models.TransactionTypeCredit,
			Reason:      reason,
			Amount:      amount,
			ReferenceID: referenceID,
		})
		return err
	})
	if err != nil {
		return account, err
	}

	s.metrics.LedgerOps.WithLabelValues(models.TransactionTypeCredit, reason).Inc()
	s.events.Publish(events.SubjectLedgerTransaction, map[string]any{
		"account_id": accountID,
		"type":       models.TransactionTypeCredit,
		"reason":     reason,
		"amount":     amount,
	})

	return account, nil
}

func (s *Service) Debit(ctx context.Context, accountID int64, amount decimal.Decimal, reason string, referenceID *uuid.UUID) (models.Account, error) {
	var account models.Account

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		var err error
		account, err = Apply(ctx, store, models.Transaction{
			AccountID:   accountID,
			Type:        models.TransactionTypeDebit,
			Reason:      reason,
			Amount:      amount,
			ReferenceID: referenceID,
		})
		return err
	})
	if err != nil {
		return account, err
	}

	s.metrics.LedgerOps.WithLabelValues(models.TransactionTypeDebit, reason).Inc()
	s.events.Publish(events.SubjectLedgerTransaction, map[string]any{
		"account_id": accountID,
		"type":       models.TransactionTypeDebit,
		"reason":     reason,
		"amount":     amount,
	})

	return account, nil
}

func (s *Service) ListTransactions(ctx context.Context, accountID int64, types []string) ([]models.Transaction, error) {
	return s.storage.Account().ListTransactions(ctx, accountID, types)
}
