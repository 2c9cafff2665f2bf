// Package discovery enumerates the pairs registered with the factory contract and seeds the pair store.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/xdr"
	"go.uber.org/zap"

	"reserveSync/internal/metrics"
	"reserveSync/internal/model"
	"reserveSync/internal/retry"
	"reserveSync/internal/soroban"
	"reserveSync/internal/storage"
)

// Invoker runs read-only contract calls.
type Invoker interface {
	InvokeReadOnly(ctx context.Context, contractID, method string, args ...xdr.ScVal) (xdr.ScVal, error)
}

type Config struct {
	Factory      string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Stats summarizes a discovery run.
type Stats struct {
	Total    uint32
	Upserted int
	Failed   int
}

// Discoverer reads every pair from the factory and upserts it with its current reserves.
type Discoverer struct {
	cfg     Config
	invoker Invoker
	store   storage.PairStore
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func New(cfg Config, invoker Invoker, store storage.PairStore, m *metrics.Metrics, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Discoverer{cfg: cfg, invoker: invoker, store: store, metrics: m, logger: logger}
}

// Run walks the factory's pair list once. Failures for a single pair are logged and skipped;
// only failing to read the pair count is returned as an error.
func (d *Discoverer) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if d.cfg.Factory == "" {
		return stats, fmt.Errorf("factory contract id is required")
	}

	raw, err := d.invoke(ctx, d.cfg.Factory, "all_pairs_length")
	if err != nil {
		return stats, fmt.Errorf("all_pairs_length: %w", err)
	}
	total, err := soroban.ScValToUint32(raw)
	if err != nil {
		return stats, fmt.Errorf("all_pairs_length: %w", err)
	}
	stats.Total = total
	d.logger.Info("discovery started", zap.String("factory", d.cfg.Factory), zap.Uint32("pairs", total))

	for i := uint32(0); i < total; i++ {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		pair, err := d.fetchPair(ctx, i)
		if err != nil {
			stats.Failed++
			d.logger.Warn("discover pair failed", zap.Uint32("index", i), zap.Error(err))
			continue
		}
		if err := d.store.UpsertPair(ctx, pair); err != nil {
			stats.Failed++
			d.logger.Warn("upsert pair failed", zap.String("address", pair.Address), zap.Error(err))
			continue
		}
		stats.Upserted++
		d.metrics.PairsDiscovered.Inc()
		d.logger.Debug("pair discovered",
			zap.Uint32("index", i),
			zap.String("address", pair.Address),
			zap.String("token_a", pair.TokenA),
			zap.String("token_b", pair.TokenB),
		)
	}

	d.logger.Info("discovery complete", zap.Uint32("pairs", total), zap.Int("upserted", stats.Upserted), zap.Int("failed", stats.Failed))
	return stats, nil
}

func (d *Discoverer) fetchPair(ctx context.Context, index uint32) (model.Pair, error) {
	raw, err := d.invoke(ctx, d.cfg.Factory, "all_pairs", soroban.Uint32ScVal(index))
	if err != nil {
		return model.Pair{}, fmt.Errorf("all_pairs: %w", err)
	}
	address, err := soroban.ScValToAddress(raw)
	if err != nil {
		return model.Pair{}, fmt.Errorf("all_pairs: %w", err)
	}

	tokenA, err := d.address(ctx, address, "token_0")
	if err != nil {
		return model.Pair{}, err
	}
	tokenB, err := d.address(ctx, address, "token_1")
	if err != nil {
		return model.Pair{}, err
	}

	raw, err = d.invoke(ctx, address, "get_reserves")
	if err != nil {
		return model.Pair{}, fmt.Errorf("get_reserves %s: %w", address, err)
	}
	reserves, err := soroban.ScValToVec(raw)
	if err != nil {
		return model.Pair{}, fmt.Errorf("get_reserves %s: %w", address, err)
	}
	if len(reserves) < 2 {
		return model.Pair{}, fmt.Errorf("get_reserves %s: expected 2 values, got %d", address, len(reserves))
	}
	reserveA, err := soroban.ScValToBigInt(reserves[0])
	if err != nil {
		return model.Pair{}, fmt.Errorf("get_reserves %s: %w", address, err)
	}
	reserveB, err := soroban.ScValToBigInt(reserves[1])
	if err != nil {
		return model.Pair{}, fmt.Errorf("get_reserves %s: %w", address, err)
	}
	if reserveA.Sign() < 0 || reserveB.Sign() < 0 {
		return model.Pair{}, fmt.Errorf("get_reserves %s: negative reserves %s/%s", address, reserveA, reserveB)
	}

	return model.Pair{
		Address:  address,
		TokenA:   tokenA,
		TokenB:   tokenB,
		ReserveA: reserveA,
		ReserveB: reserveB,
	}, nil
}

func (d *Discoverer) address(ctx context.Context, contractID, method string) (string, error) {
	raw, err := d.invoke(ctx, contractID, method)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, contractID, err)
	}
	addr, err := soroban.ScValToAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, contractID, err)
	}
	return addr, nil
}

func (d *Discoverer) invoke(ctx context.Context, contractID, method string, args ...xdr.ScVal) (xdr.ScVal, error) {
	var out xdr.ScVal
	err := retry.Do(ctx, d.cfg.MaxRetries, d.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		out, err = d.invoker.InvokeReadOnly(ctx, contractID, method, args...)
		var simErr *soroban.SimulationError
		if errors.As(err, &simErr) {
			return retry.Permanent(err)
		}
		return err
	})
	return out, err
}
