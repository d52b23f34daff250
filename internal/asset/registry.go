package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a concurrency-safe index of known assets by id and symbol.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[string][]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// Register adds a. Registering the same id twice is an error.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		return fmt.Errorf("asset: %s already registered", a.ID())
	}
	r.byID[a.ID()] = a
	sym := strings.ToUpper(a.Symbol())
	r.bySymbol[sym] = append(r.bySymbol[sym], a)
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(assets ...*Asset) {
	for _, a := range assets {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

func (r *Registry) GetNative(chainID uint64) (*Asset, bool) {
	return r.Get(NewNativeAssetID(chainID))
}

func (r *Registry) GetToken(chainID uint64, addr common.Address) (*Asset, bool) {
	if addr == (common.Address{}) {
		return r.GetNative(chainID)
	}
	return r.Get(NewTokenAssetID(chainID, addr))
}

// GetBySymbolAndChain is case-insensitive on the symbol.
func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.bySymbol[strings.ToUpper(symbol)] {
		if a.ChainID() == chainID {
			return a, true
		}
	}
	return nil, false
}

// Tokens lists the ERC20 assets registered for a chain.
func (r *Registry) Tokens(chainID uint64) []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Asset
	for id, a := range r.byID {
		if id.chainID == chainID && id.IsToken() {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
