package asset

import (
	"fmt"
	"sort"
	"sync"
)

type symbolKey struct {
	chainID uint64
	symbol  string
}

// Registry is a thread-safe index of assets by id and by (chain, symbol).
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[symbolKey]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[symbolKey]*Asset),
	}
}

// Register adds a. A second asset with the same id, or the same symbol on the
// same chain, is rejected.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	key := symbolKey{a.ChainID(), a.Symbol()}
	if prev, exists := r.bySymbol[key]; exists {
		return fmt.Errorf("asset: symbol %s on chain %d already bound to %s", a.Symbol(), a.ChainID(), prev.ID())
	}

	r.byID[a.ID()] = a
	r.bySymbol[key] = a
	return nil
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Token resolves a symbol on a chain. The native coin is found by its symbol
// as well.
func (r *Registry) Token(chainID uint64, symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[symbolKey{chainID, symbol}]
	return a, ok
}

// Native returns the gas coin of a chain.
func (r *Registry) Native(chainID uint64) (*Asset, bool) {
	return r.Get(NewNativeAssetID(chainID))
}

// OnChain returns every asset on chainID ordered by symbol.
func (r *Registry) OnChain(chainID uint64) []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Asset
	for _, a := range r.byID {
		if a.ChainID() == chainID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
