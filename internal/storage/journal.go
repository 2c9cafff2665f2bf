package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reserveSync/internal/model"
)

// JournalEntry is one applied reserve update.
type JournalEntry struct {
	Address   string `json:"address"`
	ReserveA  string `json:"reserve_a"`
	ReserveB  string `json:"reserve_b"`
	Ledger    uint32 `json:"ledger"`
	AppliedAt string `json:"applied_at"`
}

// JSONLJournal appends applied reserve updates to a JSONL file.
type JSONLJournal struct {
	path string
	mu   sync.Mutex
}

func NewJSONLJournal(path string) *JSONLJournal {
	return &JSONLJournal{path: path}
}

// Append writes a batch of updates as JSON lines.
func (j *JSONLJournal) Append(updates []model.ReserveUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	dir := filepath.Dir(j.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	appliedAt := time.Now().UTC().Format(time.RFC3339Nano)
	writer := bufio.NewWriter(file)
	for _, u := range updates {
		line, err := json.Marshal(JournalEntry{
			Address:   u.Address,
			ReserveA:  u.ReserveA.String(),
			ReserveB:  u.ReserveB.String(),
			Ledger:    u.Ledger,
			AppliedAt: appliedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write journal entry: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// ReadJournal loads every entry of a journal file.
func ReadJournal(path string) ([]JournalEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode journal line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
