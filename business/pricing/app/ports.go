// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/pricing/domain"
)

// PriceOracle quotes exact-input swaps between two ERC20 tokens.
type PriceOracle interface {
	Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.Quote, error)
}

// ReferencePriceSource returns the top of book for an exchange symbol.
type ReferencePriceSource interface {
	ReferencePrice(ctx context.Context, symbol string) (*domain.ReferencePrice, error)
}

// AssetInfo resolves token metadata. The zero address is the native coin.
type AssetInfo interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Symbol(token common.Address) (string, bool)
}

// SymbolLookup maps a base/quote pair to an exchange symbol. inverted is
// true when the symbol quotes base per quote.
type SymbolLookup func(base, quote string) (symbol string, inverted bool, ok bool)
