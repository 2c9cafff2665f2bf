/*
Package sqlite implements the pair store on SQLite.

Reserves are stored as decimal TEXT so values wider than 64 bits survive unchanged.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reserveSync/internal/model"
	"reserveSync/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS pairs (
	address    TEXT PRIMARY KEY,
	token_a    TEXT NOT NULL,
	token_b    TEXT NOT NULL,
	reserve_a  TEXT NOT NULL DEFAULT '0',
	reserve_b  TEXT NOT NULL DEFAULT '0',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_state (
	name          TEXT PRIMARY KEY,
	last_sequence INTEGER NOT NULL,
	updated_at    TEXT NOT NULL
);
`

const (
	queryListPairs = `SELECT address, token_a, token_b, reserve_a, reserve_b FROM pairs ORDER BY address`
	queryGetPair   = `SELECT address, token_a, token_b, reserve_a, reserve_b FROM pairs WHERE address = ?`
	queryUpsert    = `
	INSERT INTO pairs (address, token_a, token_b, reserve_a, reserve_b, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		reserve_a = excluded.reserve_a,
		reserve_b = excluded.reserve_b,
		updated_at = excluded.updated_at`
	queryUpdateReserves = `UPDATE pairs SET reserve_a = ?, reserve_b = ?, updated_at = ? WHERE address = ?`
	queryLoadState      = `SELECT last_sequence FROM sync_state WHERE name = ?`
	querySaveState      = `
	INSERT INTO sync_state (name, last_sequence, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET last_sequence = excluded.last_sequence, updated_at = excluded.updated_at`
)

// Store is a SQLite backed PairStore and StateStore.
type Store struct {
	db    *sql.DB
	stmts *stmtCache
}

// NewStore opens (or creates) the database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db, stmts: newStmtCache(db)}, nil
}

func (s *Store) Close() {
	s.stmts.clear()
	_ = s.db.Close()
}

func (s *Store) ListPairs(ctx context.Context) ([]model.Pair, error) {
	stmt, err := s.stmts.prepare(queryListPairs)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []model.Pair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

func (s *Store) GetPair(ctx context.Context, address string) (model.Pair, bool, error) {
	stmt, err := s.stmts.prepare(queryGetPair)
	if err != nil {
		return model.Pair{}, false, err
	}
	pair, err := scanPair(stmt.QueryRowContext(ctx, address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Pair{}, false, nil
		}
		return model.Pair{}, false, err
	}
	return pair, true, nil
}

func (s *Store) UpsertPair(ctx context.Context, pair model.Pair) error {
	if pair.Address == "" {
		return fmt.Errorf("pair address is required")
	}
	stmt, err := s.stmts.prepare(queryUpsert)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, pair.Address, pair.TokenA, pair.TokenB, intText(pair.ReserveA), intText(pair.ReserveB), now())
	return err
}

func (s *Store) UpdateReserves(ctx context.Context, address string, reserveA, reserveB *big.Int) error {
	stmt, err := s.stmts.prepare(queryUpdateReserves)
	if err != nil {
		return err
	}
	res, err := stmt.ExecContext(ctx, intText(reserveA), intText(reserveB), now(), address)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", address, storage.ErrPairNotFound)
	}
	return nil
}

func (s *Store) LoadState(ctx context.Context, name string) (uint32, bool, error) {
	stmt, err := s.stmts.prepare(queryLoadState)
	if err != nil {
		return 0, false, err
	}
	var seq int64
	if err := stmt.QueryRowContext(ctx, name).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint32(seq), true, nil
}

func (s *Store) SaveState(ctx context.Context, name string, sequence uint32) error {
	stmt, err := s.stmts.prepare(querySaveState)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, name, int64(sequence), now())
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPair(row rowScanner) (model.Pair, error) {
	var pair model.Pair
	var reserveA, reserveB string
	if err := row.Scan(&pair.Address, &pair.TokenA, &pair.TokenB, &reserveA, &reserveB); err != nil {
		return model.Pair{}, err
	}
	a, ok := new(big.Int).SetString(reserveA, 10)
	if !ok {
		return model.Pair{}, fmt.Errorf("pair %s: invalid reserve_a %q", pair.Address, reserveA)
	}
	b, ok := new(big.Int).SetString(reserveB, 10)
	if !ok {
		return model.Pair{}, fmt.Errorf("pair %s: invalid reserve_b %q", pair.Address, reserveB)
	}
	pair.ReserveA, pair.ReserveB = a, b
	return pair, nil
}

func intText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var (
	_ storage.PairStore  = (*Store)(nil)
	_ storage.StateStore = (*Store)(nil)
)
