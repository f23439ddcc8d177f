package repository

import (
	"context"

	"ecocash-activation/internal/domain/model"
)

type SubscriptionRepository interface {
	// Insert creates the subscription; a second row for the same activation code
	// returns domain.ErrAlreadyExists.
	Insert(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByActivationCode(ctx context.Context, tx Tx, code string) (*model.Subscription, error)
}
