package storage

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"reserveSync/internal/model"
)

// MemoryStore is an in-process PairStore and StateStore.
type MemoryStore struct {
	mu     sync.RWMutex
	pairs  map[string]model.Pair
	states map[string]uint32
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs:  make(map[string]model.Pair),
		states: make(map[string]uint32),
	}
}

func (s *MemoryStore) ListPairs(ctx context.Context) ([]model.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *MemoryStore) GetPair(ctx context.Context, address string) (model.Pair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pairs[address]
	if !ok {
		return model.Pair{}, false, nil
	}
	return p.Clone(), true, nil
}

func (s *MemoryStore) UpsertPair(ctx context.Context, pair model.Pair) error {
	if pair.Address == "" {
		return fmt.Errorf("pair address is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := pair.Clone()
	if existing, ok := s.pairs[pair.Address]; ok {
		next.TokenA = existing.TokenA
		next.TokenB = existing.TokenB
	}
	s.pairs[pair.Address] = next
	s.writes++
	return nil
}

func (s *MemoryStore) UpdateReserves(ctx context.Context, address string, reserveA, reserveB *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pairs[address]
	if !ok {
		return fmt.Errorf("%s: %w", address, ErrPairNotFound)
	}
	p.ReserveA = new(big.Int).Set(reserveA)
	p.ReserveB = new(big.Int).Set(reserveB)
	s.pairs[address] = p
	s.writes++
	return nil
}

// Writes returns the number of successful mutations.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *MemoryStore) LoadState(ctx context.Context, name string) (uint32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.states[name]
	return v, ok, nil
}

func (s *MemoryStore) SaveState(ctx context.Context, name string, sequence uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[name] = sequence
	return nil
}

func (s *MemoryStore) Close() {}
