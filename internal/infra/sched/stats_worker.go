package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/infra/metrics"
)

// CodeStatsSource is the slice of the stats use case the worker needs.
type CodeStatsSource interface {
	CodeStats(ctx context.Context) (*model.CodeStats, error)
}

// PoolStatter reports connection pool usage; *pgxpool.Pool satisfies it.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// StatsWorker periodically refreshes the code and pool gauges.
type StatsWorker struct {
	interval time.Duration
	stats    CodeStatsSource
	pool     PoolStatter
	log      *zerolog.Logger
}

func NewStatsWorker(interval time.Duration, stats CodeStatsSource, pool PoolStatter, logger *zerolog.Logger) *StatsWorker {
	wl := logger.With().Str("component", "StatsWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &StatsWorker{
		interval: interval,
		stats:    stats,
		pool:     pool,
		log:      &wl,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatsWorker) refresh(ctx context.Context) {
	if w.stats != nil {
		st, err := w.stats.CodeStats(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("stats worker: code stats")
		} else {
			metrics.SetCodeStats(st.Active, st.Used, st.Expired)
		}
	}
	if w.pool != nil {
		s := w.pool.Stat()
		metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns(), s.MaxConns())
	}
}
