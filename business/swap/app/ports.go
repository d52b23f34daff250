// Package app contains the swap pipeline stages and their port definitions.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
)

// ChainReader reads wallet state. Implementations must not cache.
type ChainReader interface {
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// GasEstimator simulates a call and reports the current gas price.
type GasEstimator interface {
	// EstimateGas fails when the call would revert.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
}

// TxSender broadcasts and tracks transactions.
type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionReceipt returns ethereum.NotFound while pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Signer holds the account key.
type Signer interface {
	Address() common.Address
	ChainID() *big.Int
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// NonceAllocator hands out nonces for one signer in order.
type NonceAllocator interface {
	Next(ctx context.Context) (uint64, error)
	// Release returns a nonce whose transaction never reached the network.
	Release(nonce uint64)
}

// RouterEncoder encodes calls for the single configured router.
type RouterEncoder interface {
	Address() common.Address
	EncodeSwap(call domain.RouterCall) ([]byte, error)
}

// PriceSource quotes exact-input swaps.
type PriceSource interface {
	Quote(ctx context.Context, in, out domain.AssetRef, amountIn *big.Int) (*domain.PriceQuote, error)
}

// DecimalsResolver returns the number of decimals of an asset.
type DecimalsResolver interface {
	Decimals(ctx context.Context, ref domain.AssetRef) (uint8, error)
}

// ResultSink receives every terminal result. Publish must not block.
type ResultSink interface {
	Publish(ctx context.Context, res domain.ExecutionResult)
}
