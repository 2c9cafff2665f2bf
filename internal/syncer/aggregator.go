package syncer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
	"reserveSync/internal/storage"
)

// Journal records applied updates.
type Journal interface {
	Append(updates []model.ReserveUpdate) error
}

// ApplyStats counts the outcome of one Apply call.
type ApplyStats struct {
	Applied int
	Unknown int
	Failed  int
}

// Aggregator writes reserve updates to the pair store.
type Aggregator struct {
	store   storage.PairStore
	journal Journal
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAggregator builds an Aggregator. journal may be nil.
func NewAggregator(store storage.PairStore, journal Journal, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Aggregator{store: store, journal: journal, metrics: m, logger: logger}
}

// Apply replaces the reserves of every addressed pair. Updates for addresses missing from the
// store and failed writes are logged and skipped; the remaining updates still apply.
func (a *Aggregator) Apply(ctx context.Context, updates []model.ReserveUpdate) ApplyStats {
	var stats ApplyStats
	if len(updates) == 0 {
		return stats
	}

	applied := make([]model.ReserveUpdate, 0, len(updates))
	for _, u := range updates {
		err := a.store.UpdateReserves(ctx, u.Address, u.ReserveA, u.ReserveB)
		switch {
		case err == nil:
			stats.Applied++
			applied = append(applied, u)
			a.metrics.Updates.WithLabelValues("applied").Inc()
		case errors.Is(err, storage.ErrPairNotFound):
			stats.Unknown++
			a.metrics.Updates.WithLabelValues("unknown").Inc()
			a.logger.Warn("reserve update for unknown pair", zap.String("address", u.Address), zap.Uint32("ledger", u.Ledger))
		default:
			stats.Failed++
			a.metrics.Updates.WithLabelValues("failed").Inc()
			a.logger.Error("update reserves failed", zap.String("address", u.Address), zap.Error(err))
		}
	}

	if a.journal != nil && len(applied) > 0 {
		if err := a.journal.Append(applied); err != nil {
			a.logger.Warn("journal append failed", zap.Error(err))
		}
	}
	return stats
}
