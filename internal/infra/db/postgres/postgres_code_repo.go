package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.CodeRepository = (*codeRepo)(nil)

const codeColumns = `id::text, value, subject, created_at, expires_at, used, used_by, used_at, linked_payment_id::text`

type codeRepo struct {
	pool *pgxpool.Pool
}

func NewCodeRepo(pool *pgxpool.Pool) *codeRepo {
	return &codeRepo{pool: pool}
}

// Insert adds an unused code. Both timestamps come from the database clock, the
// same one Consume compares expires_at against. ON CONFLICT DO NOTHING keeps a
// value collision from aborting the caller's transaction; it surfaces as
// domain.ErrAlreadyExists.
func (r *codeRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Code, ttl time.Duration) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	const q = `
INSERT INTO codes (id, value, subject, created_at, expires_at, used, linked_payment_id)
VALUES ($1, $2, $3, NOW(), NOW() + make_interval(secs => $4), FALSE, $5)
ON CONFLICT (value) DO NOTHING
RETURNING created_at, expires_at;`
	row, err := pickRow(ctx, r.pool, tx, q, c.ID, c.Value, c.Subject, ttl.Seconds(), c.LinkedPaymentID)
	if err != nil {
		return err
	}
	if err := row.Scan(&c.CreatedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	return nil
}

// Consume is the single check-and-set of a redemption. Two concurrent callers
// serialise on the row lock; the loser re-evaluates used=FALSE and matches nothing.
func (r *codeRepo) Consume(ctx context.Context, tx repository.Tx, value, identity string) (*model.Code, error) {
	const q = `
UPDATE codes
   SET used = TRUE, used_by = $2, used_at = NOW()
 WHERE value = $1
   AND used = FALSE
   AND expires_at > NOW()
RETURNING ` + codeColumns + `;`
	row, err := pickRow(ctx, r.pool, tx, q, value, identity)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *codeRepo) FindByValue(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	q := `SELECT ` + codeColumns + ` FROM codes WHERE value = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, value)
	if err != nil {
		return nil, err
	}
	return scanCode(row)
}

func (r *codeRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.CodeStatus, limit int) ([]*model.Code, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + codeColumns + ` FROM codes`
	switch status {
	case model.CodeStatusActive:
		q += ` WHERE used = FALSE AND expires_at > NOW()`
	case model.CodeStatusUsed:
		q += ` WHERE used = TRUE`
	case model.CodeStatusExpired:
		q += ` WHERE used = FALSE AND expires_at <= NOW()`
	case "":
	default:
		return nil, domain.ErrInvalidArgument
	}
	q += ` ORDER BY created_at DESC LIMIT $1;`

	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// Stats counts by computed status against the store clock.
func (r *codeRepo) Stats(ctx context.Context, tx repository.Tx) (*model.CodeStats, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE used = FALSE AND expires_at > NOW()),
       COUNT(*) FILTER (WHERE used = TRUE),
       COUNT(*) FILTER (WHERE used = FALSE AND expires_at <= NOW())
  FROM codes;`
	row, err := pickRow(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	var s model.CodeStats
	if err := row.Scan(&s.Total, &s.Active, &s.Used, &s.Expired); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &s, nil
}

func scanCode(row pgx.Row) (*model.Code, error) {
	var c model.Code
	err := row.Scan(&c.ID, &c.Value, &c.Subject, &c.CreatedAt, &c.ExpiresAt, &c.Used, &c.UsedBy, &c.UsedAt, &c.LinkedPaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}
