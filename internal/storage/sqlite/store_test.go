package sqlite

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/model"
	"reserveSync/internal/storage"
)

func newMemoryStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	huge, _ := new(big.Int).SetString("99999999999999999999999999999999999", 10)
	require.NoError(t, s.UpsertPair(ctx, model.Pair{Address: "P2", TokenA: "A", TokenB: "B", ReserveA: huge, ReserveB: big.NewInt(2)}))
	require.NoError(t, s.UpsertPair(ctx, model.Pair{Address: "P1", TokenA: "C", TokenB: "D", ReserveA: big.NewInt(0), ReserveB: big.NewInt(0)}))

	pairs, err := s.ListPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "P1", pairs[0].Address)
	assert.Equal(t, "P2", pairs[1].Address)
	assert.Equal(t, 0, pairs[1].ReserveA.Cmp(huge))
}

func TestUpsertKeepsTokens(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	require.NoError(t, s.UpsertPair(ctx, model.Pair{Address: "P1", TokenA: "A", TokenB: "B", ReserveA: big.NewInt(1), ReserveB: big.NewInt(1)}))
	require.NoError(t, s.UpsertPair(ctx, model.Pair{Address: "P1", TokenA: "X", TokenB: "Y", ReserveA: big.NewInt(7), ReserveB: big.NewInt(8)}))

	p, ok, err := s.GetPair(ctx, "P1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", p.TokenA)
	assert.Equal(t, "B", p.TokenB)
	assert.Equal(t, int64(7), p.ReserveA.Int64())
}

func TestUpdateReservesIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)
	require.NoError(t, s.UpsertPair(ctx, model.Pair{Address: "P1", TokenA: "A", TokenB: "B", ReserveA: big.NewInt(1), ReserveB: big.NewInt(1)}))

	for i := 0; i < 2; i++ {
		require.NoError(t, s.UpdateReserves(ctx, "P1", big.NewInt(100), big.NewInt(200)))
	}
	p, _, err := s.GetPair(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.ReserveA.Int64())
	assert.Equal(t, int64(200), p.ReserveB.Int64())
}

func TestUpdateReservesUnknown(t *testing.T) {
	s := newMemoryStore(t)
	err := s.UpdateReserves(context.Background(), "nope", big.NewInt(1), big.NewInt(1))
	assert.True(t, errors.Is(err, storage.ErrPairNotFound))
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newMemoryStore(t)

	_, ok, err := s.LoadState(ctx, "cursor")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveState(ctx, "cursor", 10))
	require.NoError(t, s.SaveState(ctx, "cursor", 12))

	seq, ok, err := s.LoadState(ctx, "cursor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(12), seq)
}

func TestGetPairMissing(t *testing.T) {
	_, ok, err := newMemoryStore(t).GetPair(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
