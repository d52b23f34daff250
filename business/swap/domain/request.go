package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SwapRequest is a trade intent. It is not modified after submission.
type SwapRequest struct {
	ID              string
	AssetIn         AssetRef
	AssetOut        AssetRef
	AmountIn        string // decimal, whole units of AssetIn
	SlippagePercent float64
	DryRun          bool
	Reason          string
	CreatedAt       time.Time
}

// NewSwapRequest stamps an id and creation time.
func NewSwapRequest(in, out AssetRef, amountIn string, slippagePercent float64, dryRun bool, reason string) SwapRequest {
	return SwapRequest{
		ID:              uuid.New().String(),
		AssetIn:         in,
		AssetOut:        out,
		AmountIn:        amountIn,
		SlippagePercent: slippagePercent,
		DryRun:          dryRun,
		Reason:          reason,
		CreatedAt:       time.Now(),
	}
}

// ValidatedSwap is a request that passed syntactic validation.
// AmountInRaw is nil until the input asset's decimals are resolved.
type ValidatedSwap struct {
	Request     SwapRequest
	AmountIn    decimal.Decimal
	AmountInRaw *big.Int
	DecimalsIn  uint8
}

// SwapParams is the untyped form of a request, as an operator or config
// file supplies it.
type SwapParams struct {
	AssetIn         string
	AssetOut        string
	AmountIn        string
	SlippagePercent float64
	DryRun          bool
	Reason          string
}

// Parse builds a SwapRequest. Missing assets fail with MissingField and
// malformed ones with InvalidAddress.
func (p SwapParams) Parse() (SwapRequest, error) {
	in, err := ParseAssetRef(p.AssetIn)
	if err != nil {
		return SwapRequest{}, err
	}
	out, err := ParseAssetRef(p.AssetOut)
	if err != nil {
		return SwapRequest{}, err
	}
	return NewSwapRequest(in, out, p.AmountIn, p.SlippagePercent, p.DryRun, p.Reason), nil
}
