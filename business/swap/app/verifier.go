package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// BalanceAllowanceVerifier checks the signer can fund the swap.
// It never approves allowance on the caller's behalf.
type BalanceAllowanceVerifier struct {
	chain ChainReader
}

func NewBalanceAllowanceVerifier(chain ChainReader) *BalanceAllowanceVerifier {
	return &BalanceAllowanceVerifier{chain: chain}
}

// Verify reads fresh wallet state and compares it to amount.
func (v *BalanceAllowanceVerifier) Verify(ctx context.Context, owner, spender common.Address, in domain.AssetRef, amount *big.Int) (domain.WalletState, error) {
	var ws domain.WalletState

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bal, err := v.chain.NativeBalance(gctx, owner)
		if err != nil {
			return readErr("native balance", err)
		}
		ws.NativeBalance = bal
		return nil
	})
	if in.IsToken() {
		g.Go(func() error {
			bal, err := v.chain.TokenBalance(gctx, in.Address(), owner)
			if err != nil {
				return readErr("token balance", err)
			}
			ws.TokenBalance = bal
			return nil
		})
		g.Go(func() error {
			allowance, err := v.chain.Allowance(gctx, in.Address(), owner, spender)
			if err != nil {
				return readErr("allowance", err)
			}
			ws.Allowance = allowance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.WalletState{}, err
	}

	if in.IsNative() {
		if ws.NativeBalance.Cmp(amount) < 0 {
			return ws, insufficient(apperror.CodeInsufficientBalance, ws.NativeBalance, amount)
		}
		return ws, nil
	}

	if ws.TokenBalance.Cmp(amount) < 0 {
		return ws, insufficient(apperror.CodeInsufficientBalance, ws.TokenBalance, amount)
	}
	if ws.Allowance.Cmp(amount) < 0 {
		return ws, insufficient(apperror.CodeInsufficientAllowance, ws.Allowance, amount)
	}
	return ws, nil
}

func readErr(what string, err error) error {
	return apperror.External(apperror.CodeExternalServiceError, "read "+what, err)
}

func insufficient(code apperror.Code, have, need *big.Int) error {
	return apperror.New(code, apperror.WithContext(fmt.Sprintf("have %s, need %s", have, need)))
}
