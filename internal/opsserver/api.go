package opsserver

import (
	"context"

	"reserveSync/internal/model"
	"reserveSync/internal/storage"
	"reserveSync/internal/syncer"
)

// TokenResolver looks up token metadata.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (model.TokenMeta, error)
}

// PairView is the public rendering of a pair. Price is reserveB per reserveA, scaled by
// token decimals when they could be resolved.
type PairView struct {
	Address  string           `json:"address"`
	TokenA   string           `json:"token_a"`
	TokenB   string           `json:"token_b"`
	ReserveA string           `json:"reserve_a"`
	ReserveB string           `json:"reserve_b"`
	Price    string           `json:"price,omitempty"`
	MetaA    *model.TokenMeta `json:"token_a_meta,omitempty"`
	MetaB    *model.TokenMeta `json:"token_b_meta,omitempty"`
}

// API is served over JSON-RPC under the "syncer" namespace.
type API struct {
	status StatusProvider
	store  storage.PairStore
	tokens TokenResolver
}

// Status backs syncer_status.
func (api *API) Status() syncer.Status {
	return api.status.Status()
}

// Pair backs syncer_pair. A missing pair yields null.
func (api *API) Pair(ctx context.Context, address string) (*PairView, error) {
	return lookupPair(ctx, api.store, api.tokens, address)
}

func lookupPair(ctx context.Context, store storage.PairStore, tokens TokenResolver, address string) (*PairView, error) {
	pair, ok, err := store.GetPair(ctx, address)
	if err != nil || !ok {
		return nil, err
	}

	view := &PairView{
		Address:  pair.Address,
		TokenA:   pair.TokenA,
		TokenB:   pair.TokenB,
		ReserveA: pair.ReserveA.String(),
		ReserveB: pair.ReserveB.String(),
	}
	if tokens != nil {
		metaA, errA := tokens.Resolve(ctx, pair.TokenA)
		metaB, errB := tokens.Resolve(ctx, pair.TokenB)
		if errA == nil && errB == nil {
			view.MetaA, view.MetaB = &metaA, &metaB
			if price, ok := pair.ScaledPrice(metaA.Decimals, metaB.Decimals); ok {
				view.Price = price.String()
			}
			return view, nil
		}
	}
	if price, ok := pair.Price(); ok {
		view.Price = price.String()
	}
	return view, nil
}
