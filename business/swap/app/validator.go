package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/asset"
)

// Validator rejects malformed requests. Validate does no I/O; Normalize
// resolves decimals and may hit the chain for unknown tokens.
type Validator struct {
	decimals DecimalsResolver
	wrapped  common.Address
}

// NewValidator takes the wrapped native token so that native and its
// wrapped form count as the same asset.
func NewValidator(decimals DecimalsResolver, wrapped common.Address) *Validator {
	return &Validator{decimals: decimals, wrapped: wrapped}
}

// Validate checks, in order: required fields, distinct assets and a
// positive amount. AssetRefs are well-formed by construction; string input
// goes through domain.SwapParams.Parse first. The first failure wins.
func (v *Validator) Validate(req domain.SwapRequest) (domain.ValidatedSwap, error) {
	switch {
	case !req.AssetIn.IsSet():
		return domain.ValidatedSwap{}, apperror.Validation(apperror.CodeMissingField, "assetIn")
	case !req.AssetOut.IsSet():
		return domain.ValidatedSwap{}, apperror.Validation(apperror.CodeMissingField, "assetOut")
	case strings.TrimSpace(req.AmountIn) == "":
		return domain.ValidatedSwap{}, apperror.Validation(apperror.CodeMissingField, "amountIn")
	}

	if req.AssetIn.Equal(req.AssetOut) || v.bothWrapped(req.AssetIn, req.AssetOut) {
		return domain.ValidatedSwap{}, apperror.Validation(apperror.CodeSameTokenSwap, req.AssetIn.String())
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.AmountIn))
	if err != nil {
		return domain.ValidatedSwap{}, apperror.New(apperror.CodeZeroOrNegativeAmount,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%q is not a decimal", req.AmountIn)))
	}
	if !amount.IsPositive() {
		return domain.ValidatedSwap{}, apperror.Validation(apperror.CodeZeroOrNegativeAmount, amount.String())
	}

	return domain.ValidatedSwap{Request: req, AmountIn: amount}, nil
}

// bothWrapped reports a native/wrapped-native pair, which the router would
// trade as one pool token against itself.
func (v *Validator) bothWrapped(a, b domain.AssetRef) bool {
	if v.wrapped == (common.Address{}) {
		return false
	}
	isWrapped := func(r domain.AssetRef) bool {
		return r.IsNative() || (r.IsToken() && r.Address() == v.wrapped)
	}
	return isWrapped(a) && isWrapped(b)
}

// Normalize scales the amount to the input asset's smallest unit.
func (v *Validator) Normalize(ctx context.Context, vs domain.ValidatedSwap) (domain.ValidatedSwap, error) {
	dec, err := v.decimals.Decimals(ctx, vs.Request.AssetIn)
	if err != nil {
		return vs, err
	}

	raw, err := asset.ParseUnits(vs.AmountIn, dec)
	if err != nil {
		ctxMsg := err.Error()
		if errors.Is(err, asset.ErrTooManyDecimals) {
			ctxMsg = fmt.Sprintf("%s exceeds precision of %d decimals", vs.AmountIn, dec)
		}
		return vs, apperror.New(apperror.CodeZeroOrNegativeAmount, apperror.WithCause(err), apperror.WithContext(ctxMsg))
	}

	vs.AmountInRaw = raw
	vs.DecimalsIn = dec
	return vs, nil
}
