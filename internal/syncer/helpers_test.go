package syncer

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stellar/go-stellar-sdk/xdr"
	"github.com/stretchr/testify/require"

	"reserveSync/internal/model"
	"reserveSync/internal/soroban"
)

func encode(t *testing.T, build func() (string, error)) string {
	t.Helper()
	out, err := build()
	require.NoError(t, err)
	return out
}

func symbolTopic(t *testing.T, s string) string {
	return encode(t, func() (string, error) { return soroban.EncodeScVal(soroban.SymbolScVal(s)) })
}

func reservesValue(t *testing.T, a, b int64) string {
	t.Helper()
	va, err := soroban.Int128ScVal(big.NewInt(a))
	require.NoError(t, err)
	vb, err := soroban.Int128ScVal(big.NewInt(b))
	require.NoError(t, err)
	m, err := soroban.MapScVal([]string{"new_reserve_0", "new_reserve_1"}, []xdr.ScVal{va, vb})
	require.NoError(t, err)
	return encode(t, func() (string, error) { return soroban.EncodeScVal(m) })
}

func syncEvent(t *testing.T, id, contract string, ledger uint32, a, b int64) model.ContractEvent {
	return model.ContractEvent{
		ID:         id,
		Type:       "contract",
		Ledger:     ledger,
		ContractID: contract,
		Topic:      []string{symbolTopic(t, "SoroswapPair"), symbolTopic(t, "sync")},
		Value:      reservesValue(t, a, b),
	}
}

func swapEvent(t *testing.T, id, contract string, ledger uint32) model.ContractEvent {
	return model.ContractEvent{
		ID:         id,
		Type:       "contract",
		Ledger:     ledger,
		ContractID: contract,
		Topic:      []string{symbolTopic(t, "SoroswapPair"), symbolTopic(t, "swap")},
		Value:      reservesValue(t, 1, 1),
	}
}

// fakeSource serves canned events per contract and fails queries touching a failing contract.
type fakeSource struct {
	mu      sync.Mutex
	events  []model.ContractEvent
	failing map[string]bool
	queries []soroban.EventQuery
}

func (f *fakeSource) GetEvents(_ context.Context, q soroban.EventQuery) (soroban.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	wanted := make(map[string]bool, len(q.ContractIDs))
	for _, id := range q.ContractIDs {
		if f.failing[id] {
			return soroban.EventPage{}, errors.New("rpc unavailable")
		}
		wanted[id] = true
	}

	var out []model.ContractEvent
	for _, ev := range f.events {
		if wanted[ev.ContractID] && ev.Ledger >= q.StartLedger {
			out = append(out, ev)
		}
	}
	return soroban.EventPage{Events: out, LatestLedger: 100}, nil
}

func (f *fakeSource) Queries() []soroban.EventQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]soroban.EventQuery(nil), f.queries...)
}

func pairs(addresses ...string) []model.Pair {
	out := make([]model.Pair, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, model.Pair{Address: a, TokenA: "A-" + a, TokenB: "B-" + a, ReserveA: big.NewInt(0), ReserveB: big.NewInt(0)})
	}
	return out
}
