package main

import (
	"fmt"
	"strconv"
	"strings"

	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
)

const defaultSlippagePercent = 0.5

// parseSwapFlag reads "in,out,amount[,slippage]". Asset syntax is checked
// later by the pipeline so that a bad asset still yields a result.
func parseSwapFlag(s string, dryRun bool) (swapDomain.SwapParams, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 || len(parts) > 4 {
		return swapDomain.SwapParams{}, fmt.Errorf("want in,out,amount[,slippage], got %d fields", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	slippage := defaultSlippagePercent
	if len(parts) == 4 {
		v, err := strconv.ParseFloat(parts[3], 64)
		if err != nil {
			return swapDomain.SwapParams{}, fmt.Errorf("slippage %q: %w", parts[3], err)
		}
		slippage = v
	}

	return swapDomain.SwapParams{
		AssetIn:         parts[0],
		AssetOut:        parts[1],
		AmountIn:        parts[2],
		SlippagePercent: slippage,
		DryRun:          dryRun,
		Reason:          "operator request",
	}, nil
}
