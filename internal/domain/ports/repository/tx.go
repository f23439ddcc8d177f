package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories MUST accept a nil Tx and fall back to the pool.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside one database transaction. A non-nil error
// from fn rolls the transaction back; otherwise it is committed.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
