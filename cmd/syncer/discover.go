package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reserveSync/internal/config"
	"reserveSync/internal/discovery"
)

func runDiscover(cmd *cobra.Command, _ []string) error {
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

	discoverer := discovery.New(discovery.Config{
		Factory:      cfg.Factory,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, store, nil, logger)

	stats, err := discoverer.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("discover done",
		zap.Uint32("total", stats.Total),
		zap.Int("upserted", stats.Upserted),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
