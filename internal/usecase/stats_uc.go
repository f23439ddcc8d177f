package usecase

import (
	"context"
	"fmt"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type StatsUseCase interface {
	CodeStats(ctx context.Context) (*model.CodeStats, error)
	// RecentCodes lists the newest codes. An empty status means all of them.
	RecentCodes(ctx context.Context, status model.CodeStatus, limit int) ([]*model.Code, error)
}

type statsUC struct {
	codes repository.CodeRepository

	log *zerolog.Logger
}

func NewStatsUseCase(codes repository.CodeRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{codes: codes, log: logger}
}

func (s *statsUC) CodeStats(ctx context.Context) (*model.CodeStats, error) {
	st, err := s.codes.Stats(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("code stats: %w", err)
	}
	return st, nil
}

func (s *statsUC) RecentCodes(ctx context.Context, status model.CodeStatus, limit int) ([]*model.Code, error) {
	switch status {
	case "", model.CodeStatusActive, model.CodeStatusUsed, model.CodeStatusExpired:
	default:
		return nil, domain.ErrInvalidArgument
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.codes.ListRecent(ctx, repository.NoTX, status, limit)
}
