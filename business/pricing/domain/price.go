// Package domain contains the core domain types for the pricing context.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/internal/asset"
)

// Quote is an on-chain exact-input quote. Amounts are in base units.
type Quote struct {
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    *big.Int
	AmountOut   *big.Int
	FeeTier     uint32 // hundredths of a bip, 3000 = 0.30%
	GasEstimate uint64
	Source      string
	Timestamp   time.Time
}

// FeeTierPercent returns the fee tier as a percentage string (e.g., "0.30%").
func (q Quote) FeeTierPercent() string {
	return fmt.Sprintf("%.2f%%", float64(q.FeeTier)/10000.0)
}

// ExecutionPrice is units of TokenOut received per unit of TokenIn.
func (q Quote) ExecutionPrice(decimalsIn, decimalsOut uint8) decimal.Decimal {
	in := asset.FormatUnits(q.AmountIn, decimalsIn)
	if in.IsZero() {
		return decimal.Zero
	}
	return asset.FormatUnits(q.AmountOut, decimalsOut).Div(in)
}

// ReferencePrice is a top-of-book snapshot from a centralized venue.
type ReferencePrice struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Source    string
	Timestamp time.Time
}

// Mid returns (bid + ask) / 2.
func (r ReferencePrice) Mid() decimal.Decimal {
	return r.Bid.Add(r.Ask).Div(decimal.NewFromInt(2))
}

// Valid reports a positive, uncrossed book.
func (r ReferencePrice) Valid() bool {
	return r.Bid.IsPositive() && r.Ask.IsPositive() && r.Ask.GreaterThanOrEqual(r.Bid)
}

func (r ReferencePrice) IsStale(maxAge time.Duration) bool {
	return time.Since(r.Timestamp) > maxAge
}
