package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
	"reserveSync/internal/retry"
	"reserveSync/internal/soroban"
)

// DefaultBatchSize is the number of contract ids the RPC accepts in one event filter.
const DefaultBatchSize = 5

// maxPages bounds pagination for one batch so a misbehaving cursor cannot loop forever.
const maxPages = 1000

// ErrAllBatchesFailed is returned by Scan when no event query succeeded.
var ErrAllBatchesFailed = errors.New("all event batches failed")

// EventSource retrieves contract events.
type EventSource interface {
	GetEvents(ctx context.Context, query soroban.EventQuery) (soroban.EventPage, error)
}

// ScannerConfig holds the event scan settings.
type ScannerConfig struct {
	BatchSize    int
	Concurrency  int
	QueryTimeout time.Duration
	PageLimit    uint
	MaxRetries   int
	RetryBackoff time.Duration
}

// ScanStats summarizes one Scan call.
type ScanStats struct {
	Batches       int
	FailedBatches int
	Events        int
	SyncEvents    int
	Updates       int
}

// Scanner turns a slice of pairs into the latest reserve snapshots observed on chain.
type Scanner struct {
	cfg     ScannerConfig
	source  EventSource
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewScanner(cfg ScannerConfig, source EventSource, m *metrics.Metrics, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Scanner{cfg: cfg, source: source, metrics: m, logger: logger}
}

// StartLedger is the first ledger scanned for a baseline. One ledger of overlap catches events
// landing on the cursor boundary.
func StartLedger(baseline uint32) uint32 {
	if baseline <= 1 {
		return 1
	}
	return baseline - 1
}

// Scan queries events for pairs from StartLedger(baseline) on and returns one update per pair
// that emitted a sync event. When a pair synced more than once the last observed value wins,
// in batch order then event order. A failed batch is logged and contributes nothing.
func (s *Scanner) Scan(ctx context.Context, pairs []model.Pair, baseline uint32) ([]model.ReserveUpdate, ScanStats, error) {
	addresses := make([]string, 0, len(pairs))
	for _, p := range pairs {
		addresses = append(addresses, p.Address)
	}

	batches, err := Chunk(addresses, s.cfg.BatchSize)
	if err != nil {
		return nil, ScanStats{}, err
	}
	stats := ScanStats{Batches: len(batches)}
	if len(batches) == 0 {
		return nil, stats, nil
	}

	start := StartLedger(baseline)
	perBatch := make([][]model.ContractEvent, len(batches))
	failed := make([]bool, len(batches))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			events, err := s.fetchBatch(ctx, batch, start)
			if err != nil {
				failed[i] = true
				s.metrics.Batches.WithLabelValues("failed").Inc()
				s.logger.Warn("event batch failed", zap.Error(err), zap.Strings("contracts", batch), zap.Uint32("start_ledger", start))
				return nil
			}
			s.metrics.Batches.WithLabelValues("ok").Inc()
			perBatch[i] = events
			return nil
		})
	}
	_ = g.Wait()

	latest := make(map[string]int)
	var updates []model.ReserveUpdate
	for i, events := range perBatch {
		if failed[i] {
			stats.FailedBatches++
			continue
		}
		stats.Events += len(events)
		for _, ev := range events {
			if !IsSyncEvent(ev) {
				continue
			}
			update, err := ParseSyncEvent(ev)
			if err != nil {
				s.logger.Debug("skip malformed sync event", zap.String("event_id", ev.ID), zap.String("contract", ev.ContractID), zap.Error(err))
				continue
			}
			stats.SyncEvents++
			if idx, ok := latest[update.Address]; ok {
				updates[idx] = update
				continue
			}
			latest[update.Address] = len(updates)
			updates = append(updates, update)
		}
	}
	stats.Updates = len(updates)
	s.metrics.SyncEvents.Add(float64(stats.SyncEvents))

	if stats.FailedBatches == stats.Batches {
		return nil, stats, fmt.Errorf("%w (%d batches)", ErrAllBatchesFailed, stats.Batches)
	}
	return updates, stats, nil
}

func (s *Scanner) fetchBatch(ctx context.Context, contracts []string, start uint32) ([]model.ContractEvent, error) {
	var events []model.ContractEvent
	query := soroban.EventQuery{
		StartLedger: start,
		ContractIDs: contracts,
		Limit:       s.cfg.PageLimit,
	}

	for page := 0; page < maxPages; page++ {
		result, err := s.queryWithRetry(ctx, query)
		if err != nil {
			return nil, err
		}
		events = append(events, result.Events...)

		if s.cfg.PageLimit == 0 || uint(len(result.Events)) < s.cfg.PageLimit {
			return events, nil
		}
		if result.Cursor == "" || result.Cursor == query.Cursor {
			return events, nil
		}
		query.Cursor = result.Cursor
	}

	s.logger.Warn("event pagination truncated", zap.Strings("contracts", contracts), zap.Int("pages", maxPages))
	return events, nil
}

func (s *Scanner) queryWithRetry(ctx context.Context, query soroban.EventQuery) (soroban.EventPage, error) {
	var page soroban.EventPage
	err := retry.Do(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func(ctx context.Context) error {
		queryCtx := ctx
		if s.cfg.QueryTimeout > 0 {
			var cancel context.CancelFunc
			queryCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
			defer cancel()
		}

		var err error
		page, err = s.source.GetEvents(queryCtx, query)
		if err != nil {
			s.logger.Debug("get events failed", zap.Error(err), zap.Strings("contracts", query.ContractIDs))
		}
		return err
	})
	return page, err
}
