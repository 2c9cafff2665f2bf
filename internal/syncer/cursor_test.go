package syncer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/storage"
)

func TestFileCursorStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "cursor.json")
	store := NewFileCursorStore(path)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, 41))
	require.NoError(t, store.Save(ctx, 42))

	seq, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(42), seq)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileCursorStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, _, err := NewFileCursorStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileCursorStoreDirectory(t *testing.T) {
	_, _, err := NewFileCursorStore(t.TempDir()).Load(context.Background())
	assert.Error(t, err)
}

func TestStateCursorStore(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	store := NewStateCursorStore(mem, "reserve_sync")

	require.NoError(t, store.Save(ctx, 7))
	seq, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), seq)

	seq, ok, err = mem.LoadState(ctx, "reserve_sync")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), seq)
}

func TestBaseline(t *testing.T) {
	assert.Equal(t, uint32(50), Baseline(0, 50, 0))
	assert.Equal(t, uint32(40), Baseline(40, 50, 0))
	assert.Equal(t, uint32(40), Baseline(40, 50, 10))
	assert.Equal(t, uint32(45), Baseline(40, 50, 5))
}
