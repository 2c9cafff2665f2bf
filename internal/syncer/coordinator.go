package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
	"reserveSync/internal/retry"
)

// DefaultPollInterval is the wait between ledger checks.
const DefaultPollInterval = 5 * time.Second

// LedgerSource reports the latest closed ledger.
type LedgerSource interface {
	LatestLedger(ctx context.Context) (uint32, error)
}

// PairLister lists the tracked pairs.
type PairLister interface {
	ListPairs(ctx context.Context) ([]model.Pair, error)
}

// CoordinatorConfig holds polling settings. MaxLookback caps how many ledgers behind the tip
// a cycle may start; zero means no cap.
type CoordinatorConfig struct {
	PollInterval time.Duration
	MaxLookback  uint32
	MaxRetries   int
	RetryBackoff time.Duration
}

// Status is a snapshot of coordinator progress.
type Status struct {
	LastSequence   uint32    `json:"last_sequence"`
	Cycles         uint64    `json:"cycles"`
	LastCycleID    string    `json:"last_cycle_id,omitempty"`
	LastCycleAt    time.Time `json:"last_cycle_at,omitempty"`
	PairsTracked   int       `json:"pairs_tracked"`
	UpdatesApplied uint64    `json:"updates_applied"`
	WorkerErrors   uint64    `json:"worker_errors"`
	Running        bool      `json:"running"`
}

// Coordinator polls for new ledgers and fans the pair set out to the worker pool.
type Coordinator struct {
	cfg        CoordinatorConfig
	ledgers    LedgerSource
	pairs      PairLister
	pool       *WorkerPool
	aggregator *Aggregator
	cursor     CursorStore
	metrics    *metrics.Metrics
	logger     *zap.Logger

	mu     sync.RWMutex
	status Status
}

func NewCoordinator(cfg CoordinatorConfig, ledgers LedgerSource, pairs PairLister, pool *WorkerPool, aggregator *Aggregator, cursor CursorStore, m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cursor == nil {
		cursor = NopCursorStore{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Coordinator{
		cfg:        cfg,
		ledgers:    ledgers,
		pairs:      pairs,
		pool:       pool,
		aggregator: aggregator,
		cursor:     cursor,
		metrics:    m,
		logger:     logger,
	}
}

// Status returns a copy of the current progress.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Run polls until ctx is cancelled. Results still in flight are applied before it returns.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.ledgers == nil || c.pairs == nil || c.pool == nil || c.aggregator == nil {
		return fmt.Errorf("coordinator is missing a dependency")
	}

	last, ok, err := c.cursor.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if ok {
		c.logger.Info("resume from cursor", zap.Uint32("last_sequence", last))
	}

	c.mu.Lock()
	c.status.LastSequence = last
	c.status.Running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.status.Running = false
		c.mu.Unlock()
	}()

	c.pool.Start(ctx)
	aggregated := make(chan struct{})
	go c.aggregate(context.WithoutCancel(ctx), aggregated)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		c.tick(ctx)

		select {
		case <-ctx.Done():
			c.pool.Close()
			<-aggregated
			c.logger.Info("coordinator stopped", zap.Uint32("last_sequence", c.Status().LastSequence))
			return nil
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	var sequence uint32
	err := retry.Do(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		sequence, err = c.ledgers.LatestLedger(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("latest ledger failed", zap.Error(err))
		}
		return
	}

	previous := c.Status().LastSequence
	if sequence <= previous {
		c.logger.Debug("no new ledger", zap.Uint32("sequence", sequence))
		return
	}

	pairs, err := c.pairs.ListPairs(ctx)
	if err != nil {
		c.logger.Error("list pairs failed", zap.Error(err), zap.Uint32("sequence", sequence))
		return
	}

	parts, err := Partition(pairs, c.pool.Size())
	if err != nil {
		c.logger.Error("partition pairs failed", zap.Error(err))
		return
	}

	baseline := Baseline(previous, sequence, c.cfg.MaxLookback)
	cycleID := uuid.NewString()
	dispatched := 0
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		job := Job{CycleID: cycleID, Worker: i, Ledger: sequence, Baseline: baseline, Pairs: part}
		if err := c.pool.Submit(ctx, job); err != nil {
			c.logger.Warn("dispatch aborted", zap.String("cycle_id", cycleID), zap.Error(err))
			break
		}
		dispatched++
	}

	c.mu.Lock()
	c.status.LastSequence = sequence
	c.status.Cycles++
	c.status.LastCycleID = cycleID
	c.status.LastCycleAt = time.Now().UTC()
	c.status.PairsTracked = len(pairs)
	c.mu.Unlock()

	c.metrics.Cycles.Inc()
	c.metrics.LastLedger.Set(float64(sequence))
	c.metrics.PairsTracked.Set(float64(len(pairs)))

	if err := c.cursor.Save(ctx, sequence); err != nil {
		c.logger.Warn("save cursor failed", zap.Error(err), zap.Uint32("sequence", sequence))
	}

	c.logger.Info("cycle dispatched",
		zap.String("cycle_id", cycleID),
		zap.Uint32("sequence", sequence),
		zap.Uint32("baseline", baseline),
		zap.Int("pairs", len(pairs)),
		zap.Int("jobs", dispatched),
	)
}

func (c *Coordinator) aggregate(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for res := range c.pool.Results() {
		if res.Err != nil {
			c.mu.Lock()
			c.status.WorkerErrors++
			c.mu.Unlock()
			c.logger.Error("worker failed",
				zap.String("cycle_id", res.Job.CycleID),
				zap.Int("worker", res.Job.Worker),
				zap.Error(res.Err),
			)
			continue
		}

		stats := c.aggregator.Apply(ctx, res.Updates)

		c.mu.Lock()
		c.status.UpdatesApplied += uint64(stats.Applied)
		c.mu.Unlock()

		c.logger.Debug("worker result applied",
			zap.String("cycle_id", res.Job.CycleID),
			zap.Int("worker", res.Job.Worker),
			zap.Int("pairs", len(res.Job.Pairs)),
			zap.Int("batches", res.Stats.Batches),
			zap.Int("failed_batches", res.Stats.FailedBatches),
			zap.Int("applied", stats.Applied),
			zap.Int("unknown", stats.Unknown),
			zap.Duration("duration", res.Duration),
		)
	}
}

// Baseline picks the ledger a cycle scans from. The first cycle of a run without a stored cursor
// starts at the current ledger, and maxLookback (when set) bounds how far back a resumed cycle reaches.
func Baseline(previous, current, maxLookback uint32) uint32 {
	if previous == 0 {
		return current
	}
	if maxLookback > 0 && current-previous > maxLookback {
		return current - maxLookback
	}
	return previous
}
