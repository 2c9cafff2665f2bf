package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reserveSync/internal/model"
	"reserveSync/internal/storage"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pairs (
		address    TEXT PRIMARY KEY,
		token_a    TEXT NOT NULL,
		token_b    TEXT NOT NULL,
		reserve_a  NUMERIC(78, 0) NOT NULL DEFAULT 0,
		reserve_b  NUMERIC(78, 0) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		name          TEXT PRIMARY KEY,
		last_sequence BIGINT NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Store provides Postgres persistence for pairs and sync state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by the syncer.
func (s *Store) EnsureSchema(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, stmt := range schema {
		batch.Queue(stmt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range schema {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ListPairs returns all pairs ordered by address.
func (s *Store) ListPairs(ctx context.Context) ([]model.Pair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, token_a, token_b, reserve_a::text, reserve_b::text
		FROM pairs
		ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pairs := make([]model.Pair, 0, 256)
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

// GetPair returns the pair stored under address.
func (s *Store) GetPair(ctx context.Context, address string) (model.Pair, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT address, token_a, token_b, reserve_a::text, reserve_b::text
		FROM pairs
		WHERE address = $1
	`, address)
	pair, err := scanPair(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pair{}, false, nil
		}
		return model.Pair{}, false, err
	}
	return pair, true, nil
}

// UpsertPair inserts a pair or refreshes the reserves of an existing one.
func (s *Store) UpsertPair(ctx context.Context, pair model.Pair) error {
	if pair.Address == "" {
		return fmt.Errorf("pair address is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pairs (address, token_a, token_b, reserve_a, reserve_b, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, now(), now())
		ON CONFLICT (address)
		DO UPDATE SET
			reserve_a = EXCLUDED.reserve_a,
			reserve_b = EXCLUDED.reserve_b,
			updated_at = now()
	`,
		pair.Address,
		pair.TokenA,
		pair.TokenB,
		intText(pair.ReserveA),
		intText(pair.ReserveB),
	)
	return err
}

// UpdateReserves replaces the reserves of an existing pair.
func (s *Store) UpdateReserves(ctx context.Context, address string, reserveA, reserveB *big.Int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE pairs
		SET reserve_a = $2::text::numeric, reserve_b = $3::text::numeric, updated_at = now()
		WHERE address = $1
	`, address, intText(reserveA), intText(reserveB))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", address, storage.ErrPairNotFound)
	}
	return nil
}

// LoadState returns last_sequence for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint32, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_sequence FROM sync_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint32(seq), true, nil
}

// SaveState upserts last_sequence for a name.
func (s *Store) SaveState(ctx context.Context, name string, sequence uint32) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (name, last_sequence, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_sequence = EXCLUDED.last_sequence, updated_at = now()
	`, name, int64(sequence))
	return err
}

func scanPair(row pgx.Row) (model.Pair, error) {
	var pair model.Pair
	var reserveA, reserveB string
	if err := row.Scan(&pair.Address, &pair.TokenA, &pair.TokenB, &reserveA, &reserveB); err != nil {
		return model.Pair{}, err
	}
	var err error
	if pair.ReserveA, err = parseInt(reserveA); err != nil {
		return model.Pair{}, fmt.Errorf("pair %s reserve_a: %w", pair.Address, err)
	}
	if pair.ReserveB, err = parseInt(reserveB); err != nil {
		return model.Pair{}, fmt.Errorf("pair %s reserve_b: %w", pair.Address, err)
	}
	return pair, nil
}

func intText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

var (
	_ storage.PairStore  = (*Store)(nil)
	_ storage.StateStore = (*Store)(nil)
)
