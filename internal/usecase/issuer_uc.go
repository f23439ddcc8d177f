// File: internal/usecase/issuer_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// Compile-time check
var _ IssuerUseCase = (*issuerUC)(nil)

// MaxIssueAttempts bounds regeneration after value collisions.
const MaxIssueAttempts = 3

type IssuerUseCase interface {
	// Issue mints and persists an unused code expiring ttl from now. subject may be
	// empty for unlock keys that are bound only when redeemed.
	Issue(ctx context.Context, tx repository.Tx, subject string, ttl time.Duration, linkedPaymentID *string) (*model.Code, error)
	// IssueBatch mints n subject-less unlock keys in one transaction: either all
	// of them are stored or none is.
	IssueBatch(ctx context.Context, n int, ttl time.Duration) ([]*model.Code, error)
}

type issuerUC struct {
	codes  repository.CodeRepository
	tm     repository.TransactionManager
	random io.Reader
	log    *zerolog.Logger
}

func NewIssuerUseCase(codes repository.CodeRepository, tm repository.TransactionManager, logger *zerolog.Logger) *issuerUC {
	l := logger.With().Str("component", "IssuerUC").Logger()
	return &issuerUC{codes: codes, tm: tm, log: &l}
}

// WithRandom swaps the entropy source; tests use it to force collisions.
func (u *issuerUC) WithRandom(r io.Reader) *issuerUC {
	u.random = r
	return u
}

func (u *issuerUC) Issue(ctx context.Context, tx repository.Tx, subject string, ttl time.Duration, linkedPaymentID *string) (*model.Code, error) {
	if ttl <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	var subj *string
	if subject != "" {
		subj = &subject
	}

	for attempt := 1; attempt <= MaxIssueAttempts; attempt++ {
		value, err := generateActivationCode(u.random)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		c := &model.Code{
			ID:              uuid.NewString(),
			Value:           value,
			Subject:         subj,
			LinkedPaymentID: linkedPaymentID,
		}

		err = u.codes.Insert(ctx, tx, c, ttl)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("insert code: %w", err)
		}
		u.log.Warn().Int("attempt", attempt).Msg("activation code collision, regenerating")
	}

	u.log.Error().Int("attempts", MaxIssueAttempts).Msg("activation code issuance exhausted")
	return nil, domain.ErrIssuanceExhausted
}

func (u *issuerUC) IssueBatch(ctx context.Context, n int, ttl time.Duration) ([]*model.Code, error) {
	if n <= 0 || n > 100 {
		return nil, domain.ErrInvalidArgument
	}
	var out []*model.Code
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		out = make([]*model.Code, 0, n)
		for i := 0; i < n; i++ {
			c, err := u.Issue(ctx, tx, "", ttl, nil)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Int("requested", n).Msg("unlock key batch rolled back")
		return nil, err
	}
	return out, nil
}
