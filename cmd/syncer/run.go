package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reserveSync/internal/config"
	"reserveSync/internal/discovery"
	"reserveSync/internal/metrics"
	"reserveSync/internal/opsserver"
	"reserveSync/internal/storage"
	"reserveSync/internal/syncer"
	"reserveSync/internal/tokens"
)

const cursorStateName = "reserve_sync"

func runSyncer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var cursor syncer.CursorStore
	switch cfg.CursorBackend {
	case config.CursorFile:
		cursor = syncer.NewFileCursorStore(cfg.CursorPath)
	case config.CursorStore:
		cursor = syncer.NewStateCursorStore(store, cursorStateName)
	default:
		cursor = syncer.NopCursorStore{}
	}

	var journal syncer.Journal
	if cfg.Journal != "" {
		journal = storage.NewJSONLJournal(cfg.Journal)
	}

	scanner := syncer.NewScanner(syncer.ScannerConfig{
		BatchSize:    cfg.BatchSize,
		Concurrency:  cfg.BatchConcurrency,
		QueryTimeout: cfg.QueryTimeout,
		PageLimit:    cfg.PageLimit,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, m, logger.Named("scanner"))

	pool, err := syncer.NewWorkerPool(cfg.Workers, scanner, m, logger.Named("pool"))
	if err != nil {
		return err
	}

	coordinator := syncer.NewCoordinator(syncer.CoordinatorConfig{
		PollInterval: cfg.PollInterval,
		MaxLookback:  cfg.MaxLookback,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, store, pool, syncer.NewAggregator(store, journal, m, logger.Named("aggregator")), cursor, m, logger.Named("coordinator"))

	logger.Info("syncer start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("factory", cfg.Factory),
		zap.String("source_account", client.SourceAccount()),
		zap.String("store", cfg.Store),
		zap.Int("workers", cfg.Workers),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("cursor", cfg.CursorBackend),
		zap.String("ops_addr", cfg.OpsAddr),
	)

	var ops *opsserver.Server
	if cfg.OpsAddr != "" {
		ops, err = opsserver.New(cfg.OpsAddr, coordinator, store, tokens.NewResolver(client, nil), reg, logger.Named("ops"))
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return coordinator.Run(gctx)
	})

	if ops != nil {
		g.Go(func() error {
			return ops.Run(gctx)
		})
	}

	if !cfg.SkipDiscovery {
		discoverer := discovery.New(discovery.Config{
			Factory:      cfg.Factory,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, client, store, m, logger.Named("discovery"))
		g.Go(func() error {
			if _, err := discoverer.Run(gctx); err != nil && gctx.Err() == nil {
				logger.Error("discovery failed", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
