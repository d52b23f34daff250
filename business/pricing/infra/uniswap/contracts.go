package uniswap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Pool fee tiers in hundredths of a bip.
const (
	FeeTierLowest uint32 = 100
	FeeTierLow    uint32 = 500
	FeeTierMedium uint32 = 3000
	FeeTierHigh   uint32 = 10000
)

const methodQuoteSingle = "quoteExactInputSingle"

// quoterV2JSON covers quoteExactInputSingle only.
const quoterV2JSON = `[{
	"type": "function",
	"name": "quoteExactInputSingle",
	"stateMutability": "nonpayable",
	"inputs": [{
		"name": "params",
		"type": "tuple",
		"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
		"components": [
			{"name": "tokenIn", "type": "address"},
			{"name": "tokenOut", "type": "address"},
			{"name": "amountIn", "type": "uint256"},
			{"name": "fee", "type": "uint24"},
			{"name": "sqrtPriceLimitX96", "type": "uint160"}
		]
	}],
	"outputs": [
		{"name": "amountOut", "type": "uint256"},
		{"name": "sqrtPriceX96After", "type": "uint160"},
		{"name": "initializedTicksCrossed", "type": "uint32"},
		{"name": "gasEstimate", "type": "uint256"}
	]
}]`

var quoterABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(quoterV2JSON))
	if err != nil {
		panic("uniswap: bad QuoterV2 ABI: " + err.Error())
	}
	return parsed
}()

// singleQuoteParams mirrors IQuoterV2.QuoteExactInputSingleParams. Field
// names must match the ABI components for tuple packing.
type singleQuoteParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// poolQuote is one fee tier's answer.
type poolQuote struct {
	FeeTier      uint32
	AmountOut    *big.Int
	GasEstimate  *big.Int
	TicksCrossed uint32
}

// packQuote encodes a quote with no price limit.
func packQuote(tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) ([]byte, error) {
	return quoterABI.Pack(methodQuoteSingle, singleQuoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(feeTier)),
		SqrtPriceLimitX96: new(big.Int),
	})
}

func unpackQuote(feeTier uint32, raw []byte) (*poolQuote, error) {
	out, err := quoterABI.Unpack(methodQuoteSingle, raw)
	if err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("decode quote: %d outputs", len(out))
	}

	amountOut, ok1 := out[0].(*big.Int)
	ticks, ok2 := out[2].(uint32)
	gas, ok3 := out[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("decode quote: unexpected types %T %T %T", out[0], out[2], out[3])
	}
	return &poolQuote{
		FeeTier:      feeTier,
		AmountOut:    amountOut,
		GasEstimate:  gas,
		TicksCrossed: ticks,
	}, nil
}
