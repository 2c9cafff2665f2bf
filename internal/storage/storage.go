package storage

import (
	"context"
	"errors"
	"math/big"

	"reserveSync/internal/model"
)

// ErrPairNotFound is returned when a reserve update targets an address absent from the store.
var ErrPairNotFound = errors.New("pair not found")

// PairStore persists tracked pairs and their reserves.
type PairStore interface {
	// ListPairs returns every tracked pair ordered by address.
	ListPairs(ctx context.Context) ([]model.Pair, error)
	// GetPair returns a single pair.
	GetPair(ctx context.Context, address string) (model.Pair, bool, error)
	// UpsertPair inserts a pair or refreshes its reserves. Tokens of an existing pair are never rewritten.
	UpsertPair(ctx context.Context, pair model.Pair) error
	// UpdateReserves replaces both reserves of an existing pair.
	UpdateReserves(ctx context.Context, address string, reserveA, reserveB *big.Int) error
	Close()
}

// StateStore persists named sync progress values.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint32, bool, error)
	SaveState(ctx context.Context, name string, sequence uint32) error
}
