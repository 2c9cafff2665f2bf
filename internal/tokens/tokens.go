// Package tokens resolves and caches Soroban token metadata.
package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/stellar/go-stellar-sdk/xdr"

	"reserveSync/internal/model"
	"reserveSync/internal/soroban"
)

// Invoker runs read-only contract calls.
type Invoker interface {
	InvokeReadOnly(ctx context.Context, contractID, method string, args ...xdr.ScVal) (xdr.ScVal, error)
}

// MetaCache caches token metadata by contract id.
type MetaCache struct {
	mu   sync.RWMutex
	data map[string]model.TokenMeta
}

func NewMetaCache() *MetaCache {
	return &MetaCache{data: make(map[string]model.TokenMeta)}
}

func (c *MetaCache) Get(address string) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *MetaCache) Set(address string, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Resolver returns token metadata, reading it from the chain on a cache miss.
type Resolver struct {
	invoker Invoker
	cache   *MetaCache
}

func NewResolver(invoker Invoker, cache *MetaCache) *Resolver {
	if cache == nil {
		cache = NewMetaCache()
	}
	return &Resolver{invoker: invoker, cache: cache}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (model.TokenMeta, error) {
	if meta, ok := r.cache.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.invoker, token)
	if err != nil {
		return model.TokenMeta{}, err
	}
	r.cache.Set(token, meta)
	return meta, nil
}

// FetchTokenMeta loads decimals, symbol and name from a token contract.
func FetchTokenMeta(ctx context.Context, invoker Invoker, token string) (model.TokenMeta, error) {
	if invoker == nil {
		return model.TokenMeta{}, fmt.Errorf("invoker is nil")
	}

	raw, err := invoker.InvokeReadOnly(ctx, token, "decimals")
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("decimals %s: %w", token, err)
	}
	decimals, err := soroban.ScValToUint32(raw)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("decimals %s: %w", token, err)
	}

	symbol, err := callString(ctx, invoker, token, "symbol")
	if err != nil {
		return model.TokenMeta{}, err
	}
	name, err := callString(ctx, invoker, token, "name")
	if err != nil {
		return model.TokenMeta{}, err
	}

	return model.TokenMeta{
		Address:  token,
		Symbol:   symbol,
		Name:     name,
		Decimals: decimals,
	}, nil
}

func callString(ctx context.Context, invoker Invoker, token, method string) (string, error) {
	raw, err := invoker.InvokeReadOnly(ctx, token, method)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", method, token, err)
	}
	s, ok := soroban.ScValString(raw)
	if !ok {
		return "", fmt.Errorf("%s %s: unexpected %s", method, token, raw.Type)
	}
	return s, nil
}
