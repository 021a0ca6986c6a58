package redeem

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/nmarkelov/simshop/internal/apperrors"
	"github.com/nmarkelov/simshop/internal/events"
	"github.com/nmarkelov/simshop/internal/metrics"
	"github.com/nmarkelov/simshop/internal/models"
	"github.com/nmarkelov/simshop/internal/repository"
	"github.com/nmarkelov/simshop/internal/service/ledger"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// Collisions on a 6-char code are rare; give up after a few retries
	// rather than looping forever
	maxGenerateAttempts = 10
)

type Service struct {
	storage repository.Storage
	metrics *metrics.Metrics
	events  events.Publisher
}

func NewService(storage repository.Storage, m *metrics.Metrics, pub events.Publisher) *Service {
	return &Service{
		storage: storage,
		metrics: m,
		events:  pub,
	}
}

// CreateCode mints a fresh redeem code with the given credit amount and
// claim limit
func (s *Service) CreateCode(ctx context.Context, amount decimal.Decimal, maxClaims int) (models.RedeemCode, error) {
	var code models.RedeemCode

	if !amount.IsPositive() {
		return code, apperrors.ErrInvalidAmount
	}
	if maxClaims <= 0 {
		return code, apperrors.ErrInvalidQuantity
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		generated, err := generateCode(codeLength)
		if err != nil {
			return code, err
		}

		code, err = s.storage.Redeem().Create(ctx, models.RedeemCode{
			Code:      generated,
			Amount:    amount,
			MaxClaims: maxClaims,
		})
		if errors.Is(err, apperrors.ErrCodeExists) {
			continue
		}

		return code, err
	}

	return code, apperrors.ErrCodeExists
}

// Claim credits the code's amount to the account. The claim check and the
// claimer-set mutation are one conditional update, so concurrent claims can
// neither pass the limit nor double-claim for the same account.
func (s *Service) Claim(ctx context.Context, code string, accountID int64) (models.RedeemCode, models.Account, error) {
	var (
		claimed models.RedeemCode
		account models.Account
	)

	err := s.storage.InTx(ctx, func(store repository.Storage) error {
		if _, err := store.Account().GetOrCreate(ctx, accountID, ""); err != nil {
			return err
		}

		var err error
		claimed, err = store.Redeem().Claim(ctx, code, accountID)
		if err != nil {
			return err
		}

		account, err = ledger.Apply(ctx, store, models.Transaction{
			AccountID: accountID,
			Type:      models.TransactionTypeCredit,
			Reason:    models.TxReasonRedeem,
			Amount:    claimed.Amount,
		})
		return err
	})

	switch {
	case err == nil:
		s.metrics.RedeemClaims.WithLabelValues("ok").Inc()
	case errors.Is(err, apperrors.ErrLimitReached):
		s.metrics.RedeemClaims.WithLabelValues("limit_reached").Inc()
	case errors.Is(err, apperrors.ErrAlreadyClaimed):
		s.metrics.RedeemClaims.WithLabelValues("already_claimed").Inc()
	case errors.Is(err, apperrors.ErrCodeNotFound):
		s.metrics.RedeemClaims.WithLabelValues("not_found").Inc()
	}
	if err != nil {
		return claimed, account, err
	}

	s.events.Publish(events.SubjectLedgerTransaction, map[string]any{
		"account_id": accountID,
		"type":       models.TransactionTypeCredit,
		"reason":     models.TxReasonRedeem,
		"amount":     claimed.Amount,
	})

	return claimed, account, nil
}

func (s *Service) List(ctx context.Context) ([]models.RedeemCode, error) {
	return s.storage.Redeem().List(ctx)
}

func generateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}

	return string(code), nil
}
