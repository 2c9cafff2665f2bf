package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reserveSync/internal/config"
	"reserveSync/internal/soroban"
	"reserveSync/internal/storage"
	"reserveSync/internal/storage/postgres"
	"reserveSync/internal/storage/sqlite"
)

type pairStateStore interface {
	storage.PairStore
	storage.StateStore
}

func openStore(ctx context.Context, cfg config.Config) (pairStateStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func openClient(ctx context.Context, cfg config.Config, logger *zap.Logger) (*soroban.Client, error) {
	client, err := soroban.NewClient(ctx, soroban.ClientConfig{
		RPCURL:            cfg.RPCURL,
		NetworkPassphrase: cfg.NetworkPassphrase,
		AdminSecret:       cfg.AdminSecret,
		HTTPTimeout:       cfg.RPCTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	if cfg.SkipNetworkCheck {
		logger.Warn("network check skipped")
		return client, nil
	}
	if err := client.CheckNetwork(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
