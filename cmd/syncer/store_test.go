package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/config"
	"reserveSync/internal/storage"
)

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(context.Background(), config.Config{Store: config.StoreMemory})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*storage.MemoryStore)
	assert.True(t, ok)
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := config.Config{
		Store:      config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "pairs.db"),
	}
	store, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, found, err := store.LoadState(ctx, "ledger")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SaveState(ctx, "ledger", 42))
	seq, found, err := store.LoadState(ctx, "ledger")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(42), seq)

	pairs, err := store.ListPairs(ctx)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestOpenStoreUnknown(t *testing.T) {
	_, err := openStore(context.Background(), config.Config{Store: "redis"})
	assert.ErrorContains(t, err, "unknown store")
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = newLogger("loud")
	assert.Error(t, err)
}
