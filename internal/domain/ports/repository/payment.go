package repository

import (
	"context"

	"ecocash-activation/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Insert stores the event and returns its new id. When a row with the same
	// transaction_ref already exists nothing is written and domain.ErrDuplicatePayment
	// is returned. The check and the insert are one statement.
	Insert(ctx context.Context, tx Tx, p *model.PaymentEvent) (string, error)
	FindByTransactionRef(ctx context.Context, tx Tx, ref string) (*model.PaymentEvent, error)
}
