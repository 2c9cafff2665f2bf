package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"reserveSync/internal/storage"
)

// CursorStore persists the last dispatched ledger sequence across restarts.
type CursorStore interface {
	Load(ctx context.Context) (uint32, bool, error)
	Save(ctx context.Context, sequence uint32) error
}

// NopCursorStore never persists; every start is a cold start.
type NopCursorStore struct{}

func (NopCursorStore) Load(context.Context) (uint32, bool, error) { return 0, false, nil }
func (NopCursorStore) Save(context.Context, uint32) error         { return nil }

// Checkpoint is the on-disk cursor format.
type Checkpoint struct {
	LastSequence uint32 `json:"last_sequence"`
	UpdatedAt    string `json:"updated_at"`
}

// FileCursorStore keeps the cursor in a JSON file, replaced atomically on each save.
type FileCursorStore struct {
	path string
}

func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (c *FileCursorStore) Load(context.Context) (uint32, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	return cp.LastSequence, true, nil
}

func (c *FileCursorStore) Save(_ context.Context, sequence uint32) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		LastSequence: sequence,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// StateCursorStore keeps the cursor as a named row of the store's sync_state table.
type StateCursorStore struct {
	store storage.StateStore
	name  string
}

func NewStateCursorStore(store storage.StateStore, name string) *StateCursorStore {
	return &StateCursorStore{store: store, name: name}
}

func (c *StateCursorStore) Load(ctx context.Context) (uint32, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *StateCursorStore) Save(ctx context.Context, sequence uint32) error {
	return c.store.SaveState(ctx, c.name, sequence)
}
