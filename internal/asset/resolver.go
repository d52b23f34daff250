package asset

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultDecimals is assumed when no chain reader is available.
const DefaultDecimals uint8 = 18

// DecimalsSource reads ERC20 decimals from the chain.
type DecimalsSource interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Resolver answers metadata questions about assets on one chain. The
// registry is consulted first, then the chain.
type Resolver struct {
	registry *Registry
	chainID  uint64
	chain    DecimalsSource
}

// NewResolver returns a resolver. chain may be nil, in which case unknown
// tokens are assumed to have DefaultDecimals.
func NewResolver(registry *Registry, chainID uint64, chain DecimalsSource) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{registry: registry, chainID: chainID, chain: chain}
}

// ChainID returns the chain this resolver serves.
func (r *Resolver) ChainID() uint64 { return r.chainID }

// Decimals returns the decimals of token. The zero address is the native coin.
func (r *Resolver) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if a, ok := r.registry.GetToken(r.chainID, token); ok {
		return a.Decimals(), nil
	}
	if token == (common.Address{}) {
		return DefaultDecimals, nil
	}
	if r.chain == nil {
		return DefaultDecimals, nil
	}
	d, err := r.chain.TokenDecimals(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", token.Hex(), err)
	}
	return d, nil
}

// Symbol returns the registered symbol of token. The zero address is the
// native coin and falls back to "ETH".
func (r *Resolver) Symbol(token common.Address) (string, bool) {
	if a, ok := r.registry.GetToken(r.chainID, token); ok {
		return a.Symbol(), true
	}
	if token == (common.Address{}) {
		return "ETH", true
	}
	return "", false
}
