package app

import (
	"context"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// SwapQuoteCalculator prices a validated swap and applies the slippage floor.
type SwapQuoteCalculator struct {
	prices PriceSource
}

func NewSwapQuoteCalculator(prices PriceSource) *SwapQuoteCalculator {
	return &SwapQuoteCalculator{prices: prices}
}

func (c *SwapQuoteCalculator) Quote(ctx context.Context, vs domain.ValidatedSwap) (domain.SwapQuote, error) {
	pq, err := c.prices.Quote(ctx, vs.Request.AssetIn, vs.Request.AssetOut, vs.AmountInRaw)
	if err != nil {
		return domain.SwapQuote{}, apperror.New(apperror.CodeQuoteUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(err.Error()))
	}
	return domain.NewSwapQuote(vs.AmountInRaw, *pq, vs.Request.SlippagePercent)
}
