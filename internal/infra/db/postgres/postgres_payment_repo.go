package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

// Insert relies on the unique transaction_ref index: a conflicting row makes
// RETURNING yield nothing, which is reported as a duplicate.
func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (string, error) {
	const q = `
INSERT INTO payments (id, transaction_ref, amount, from_phone, received_at, raw_text)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (transaction_ref) DO NOTHING
RETURNING id;`

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	row, err := pickRow(ctx, r.pool, tx, q, id, p.TransactionRef, p.Amount.String(), p.FromPhone, p.ReceivedAt, p.RawText)
	if err != nil {
		return "", err
	}

	var got string
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrDuplicatePayment
		}
		return "", mapExecErr(err)
	}
	return got, nil
}

func (r *paymentRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentEvent, error) {
	const q = `
SELECT id, transaction_ref, amount::text, from_phone, received_at, raw_text
  FROM payments
 WHERE transaction_ref = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}

	var (
		p      model.PaymentEvent
		amount string
	)
	if err := row.Scan(&p.ID, &p.TransactionRef, &amount, &p.FromPhone, &p.ReceivedAt, &p.RawText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}
