package repository

import (
	"context"
	"time"

	"ecocash-activation/internal/domain/model"
)

// CodeRepository is the port for activation codes and unlock keys.
type CodeRepository interface {
	// Insert persists a new unused code stamped by the store clock: created_at is
	// NOW() and expires_at is NOW()+ttl. Both are written back into c. A value
	// collision returns domain.ErrAlreadyExists without aborting the surrounding
	// transaction.
	Insert(ctx context.Context, tx Tx, c *model.Code, ttl time.Duration) error
	// Consume atomically marks the matching unused, unexpired code as used by identity
	// and returns it with UsedAt set to the store clock. No match returns domain.ErrNotFound.
	Consume(ctx context.Context, tx Tx, value, identity string) (*model.Code, error)
	FindByValue(ctx context.Context, tx Tx, value string) (*model.Code, error)
	// ListRecent returns the newest codes, optionally filtered by computed status.
	ListRecent(ctx context.Context, tx Tx, status model.CodeStatus, limit int) ([]*model.Code, error)
	Stats(ctx context.Context, tx Tx) (*model.CodeStats, error)
}
