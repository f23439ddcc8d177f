// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase records payment events exactly once per transaction reference.
type LedgerUseCase interface {
	// Record stores the event and returns its id, or domain.ErrDuplicatePayment
	// when the reference was seen before. Pass a tx to join a wider transaction.
	Record(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (string, error)
}

type ledgerUC struct {
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewLedgerUseCase(payments repository.PaymentRepository, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{payments: payments, log: &l}
}

func (u *ledgerUC) Record(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (string, error) {
	if ev == nil || ev.TransactionRef == "" {
		return "", domain.ErrInvalidArgument
	}

	id, err := u.payments.Insert(ctx, tx, ev)
	switch {
	case errors.Is(err, domain.ErrDuplicatePayment):
		u.log.Info().Str("transaction_ref", ev.TransactionRef).Msg("duplicate payment ignored")
		return "", err
	case err != nil:
		return "", fmt.Errorf("record payment %s: %w", ev.TransactionRef, err)
	}

	ev.ID = id
	u.log.Debug().Str("payment_id", id).Str("transaction_ref", ev.TransactionRef).Msg("payment recorded")
	return id, nil
}
