package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (id, user_id, activation_code, payment_id, start_date, expiry_date, status)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.ActivationCode, s.PaymentID, s.StartDate, s.ExpiryDate, string(s.Status))
	return mapExecErr(err)
}

func (r *subscriptionRepo) FindByActivationCode(ctx context.Context, tx repository.Tx, code string) (*model.Subscription, error) {
	const q = `
SELECT id, user_id, activation_code, payment_id, start_date, expiry_date, status
  FROM subscriptions
 WHERE activation_code = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	var (
		s      model.Subscription
		status string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.ActivationCode, &s.PaymentID, &s.StartDate, &s.ExpiryDate, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}
