package domain

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

var hundred = decimal.NewFromInt(100)

// PriceQuote is what a price source returns for an exact-input swap.
type PriceQuote struct {
	AmountOut *big.Int
	FeeTier   uint32
	Source    string
}

// SwapQuote is the priced request.
type SwapQuote struct {
	AmountIn               *big.Int
	EstimatedOutput        *big.Int
	MinOutputAfterSlippage *big.Int
	FeeTier                uint32
	Source                 string
}

// CalculateMinOutput returns floor(estimated * (1 - slippage/100)).
// Slippage must be within [0, 100].
func CalculateMinOutput(estimated *big.Int, slippagePercent float64) (*big.Int, error) {
	if estimated == nil || estimated.Sign() < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidQuote, "estimated output must be non-negative")
	}
	if math.IsNaN(slippagePercent) || slippagePercent < 0 || slippagePercent > 100 {
		return nil, apperror.Validation(apperror.CodeInvalidSlippage, "slippage must be within [0, 100]")
	}

	keep := hundred.Sub(decimal.NewFromFloat(slippagePercent))
	num := decimal.NewFromBigInt(estimated, 0).Mul(keep)

	// QuoRem at precision 0 truncates; num is non-negative so this is floor.
	q, _ := num.QuoRem(hundred, 0)
	return q.BigInt(), nil
}

// NewSwapQuote derives the slippage floor from a price quote.
func NewSwapQuote(amountIn *big.Int, pq PriceQuote, slippagePercent float64) (SwapQuote, error) {
	if pq.AmountOut == nil || pq.AmountOut.Sign() <= 0 {
		return SwapQuote{}, apperror.New(apperror.CodeQuoteUnavailable,
			apperror.WithContext("price source returned zero output"))
	}
	minOut, err := CalculateMinOutput(pq.AmountOut, slippagePercent)
	if err != nil {
		return SwapQuote{}, err
	}
	return SwapQuote{
		AmountIn:               new(big.Int).Set(amountIn),
		EstimatedOutput:        new(big.Int).Set(pq.AmountOut),
		MinOutputAfterSlippage: minOut,
		FeeTier:                pq.FeeTier,
		Source:                 pq.Source,
	}, nil
}
