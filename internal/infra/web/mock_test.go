//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/repository"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

type mockStatsUC struct {
	CodeStatsFunc   func(ctx context.Context) (*model.CodeStats, error)
	RecentCodesFunc func(ctx context.Context, status model.CodeStatus, limit int) ([]*model.Code, error)
}

func (m *mockStatsUC) CodeStats(ctx context.Context) (*model.CodeStats, error) {
	if m.CodeStatsFunc == nil {
		return &model.CodeStats{}, nil
	}
	return m.CodeStatsFunc(ctx)
}

func (m *mockStatsUC) RecentCodes(ctx context.Context, status model.CodeStatus, limit int) ([]*model.Code, error) {
	if m.RecentCodesFunc == nil {
		return nil, nil
	}
	return m.RecentCodesFunc(ctx, status, limit)
}

type mockIssuerUC struct {
	IssueBatchFunc func(ctx context.Context, n int, ttl time.Duration) ([]*model.Code, error)
}

func (m *mockIssuerUC) Issue(ctx context.Context, tx repository.Tx, subject string, ttl time.Duration, linkedPaymentID *string) (*model.Code, error) {
	return nil, nil
}

func (m *mockIssuerUC) IssueBatch(ctx context.Context, n int, ttl time.Duration) ([]*model.Code, error) {
	return m.IssueBatchFunc(ctx, n, ttl)
}
