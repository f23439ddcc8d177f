// File: internal/usecase/redeemer_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
	"ecocash-activation/internal/infra/logging"
)

// Compile-time check
var _ RedeemerUseCase = (*redeemerUC)(nil)

// RedemptionResult is what a successful redemption grants.
type RedemptionResult struct {
	PremiumUntil    time.Time
	DurationMinutes int
	// Subscription is set when the code was minted for a payment.
	Subscription *model.Subscription
}

type RedeemerUseCase interface {
	// Redeem consumes codeValue on behalf of identity. Unknown, used and expired
	// codes all return domain.ErrInvalidOrExpired.
	Redeem(ctx context.Context, codeValue, identity string) (*RedemptionResult, error)
}

type redeemerUC struct {
	codes              repository.CodeRepository
	subs               repository.SubscriptionRepository
	tm                 repository.TransactionManager
	grantWindow        time.Duration
	subscriptionWindow time.Duration
	log                *zerolog.Logger
}

func NewRedeemerUseCase(
	codes repository.CodeRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	grantWindow, subscriptionWindow time.Duration,
	logger *zerolog.Logger,
) *redeemerUC {
	l := logger.With().Str("component", "RedeemerUC").Logger()
	return &redeemerUC{
		codes:              codes,
		subs:               subs,
		tm:                 tm,
		grantWindow:        grantWindow,
		subscriptionWindow: subscriptionWindow,
		log:                &l,
	}
}

func (u *redeemerUC) Redeem(ctx context.Context, codeValue, identity string) (*RedemptionResult, error) {
	defer logging.TraceDuration(u.log, "RedeemerUC.Redeem")()

	codeValue = NormalizeCode(codeValue)
	identity = strings.TrimSpace(identity)
	if codeValue == "" || identity == "" {
		return nil, domain.ErrInvalidArgument
	}

	var res *RedemptionResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		// The check and the transition are one conditional update; expiry is judged
		// against the store clock inside it.
		c, err := u.codes.Consume(ctx, tx, codeValue, identity)
		if err != nil {
			return err
		}
		usedAt := time.Now()
		if c.UsedAt != nil {
			usedAt = *c.UsedAt
		}

		res = &RedemptionResult{
			PremiumUntil:    usedAt.Add(u.grantWindow),
			DurationMinutes: int(u.grantWindow / time.Minute),
		}

		if c.LinkedPaymentID == nil || u.subs == nil {
			return nil
		}
		sub := &model.Subscription{
			ID:             uuid.NewString(),
			UserID:         identity,
			ActivationCode: c.Value,
			PaymentID:      *c.LinkedPaymentID,
			StartDate:      usedAt,
			ExpiryDate:     usedAt.Add(u.subscriptionWindow),
			Status:         model.SubscriptionStatusActive,
		}
		if err := u.subs.Insert(ctx, tx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		res.Subscription = sub
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		u.log.Info().Msg("redemption rejected: invalid, used or expired")
		return nil, domain.ErrInvalidOrExpired
	case err != nil:
		return nil, fmt.Errorf("redeem: %w", err)
	}

	ev := u.log.Info().Time("premium_until", res.PremiumUntil)
	if res.Subscription != nil {
		ev = ev.Str("subscription_id", res.Subscription.ID)
	}
	ev.Msg("code redeemed")
	return res, nil
}
