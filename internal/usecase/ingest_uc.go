// File: internal/usecase/ingest_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// Compile-time check
var _ IngestUseCase = (*ingestUC)(nil)

// IngestResult is the outcome of one accepted payment message.
type IngestResult struct {
	Payment *model.PaymentEvent
	Code    *model.Code
}

type IngestUseCase interface {
	// Ingest runs Parser -> Ledger -> Issuer for one inbound text. Errors are a
	// *ParseError, domain.ErrDuplicatePayment, domain.ErrIssuanceExhausted or a
	// wrapped store failure.
	Ingest(ctx context.Context, body string) (*IngestResult, error)
}

type ingestUC struct {
	ledger  LedgerUseCase
	issuer  IssuerUseCase
	tm      repository.TransactionManager
	price   decimal.Decimal
	codeTTL time.Duration
	now     func() time.Time
}

func NewIngestUseCase(ledger LedgerUseCase, issuer IssuerUseCase, tm repository.TransactionManager, price decimal.Decimal, codeTTL time.Duration) *ingestUC {
	return &ingestUC{ledger: ledger, issuer: issuer, tm: tm, price: price, codeTTL: codeTTL, now: time.Now}
}

func (u *ingestUC) Ingest(ctx context.Context, body string) (*IngestResult, error) {
	ev, err := ParsePaymentMessage(body, u.price, u.now())
	if err != nil {
		return nil, err
	}

	var res *IngestResult
	// Ledger and issuer share one transaction: if issuing fails the payment row is
	// rolled back and a provider retry of the same event can still succeed.
	err = u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		paymentID, err := u.ledger.Record(ctx, tx, ev)
		if err != nil {
			return err
		}
		code, err := u.issuer.Issue(ctx, tx, ev.FromPhone, u.codeTTL, &paymentID)
		if err != nil {
			return err
		}
		res = &IngestResult{Payment: ev, Code: code}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
