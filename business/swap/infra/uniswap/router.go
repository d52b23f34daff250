// Package uniswap encodes swap calls for the Uniswap V3 SwapRouter.
package uniswap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/swap/app"
	"github.com/fd1az/swap-sentinel/business/swap/domain"
)

var _ app.RouterEncoder = (*Router)(nil)

// SwapRouterABI covers the subset of ISwapRouter and IPeripheryPayments we call.
const SwapRouterABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "address", "name": "tokenIn", "type": "address"},
					{"internalType": "address", "name": "tokenOut", "type": "address"},
					{"internalType": "uint24", "name": "fee", "type": "uint24"},
					{"internalType": "address", "name": "recipient", "type": "address"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"},
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
				],
				"internalType": "struct ISwapRouter.ExactInputSingleParams",
				"name": "params",
				"type": "tuple"
			}
		],
		"name": "exactInputSingle",
		"outputs": [{"internalType": "uint256", "name": "amountOut", "type": "uint256"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountMinimum", "type": "uint256"},
			{"internalType": "address", "name": "recipient", "type": "address"}
		],
		"name": "unwrapWETH9",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes[]", "name": "data", "type": "bytes[]"}],
		"name": "multicall",
		"outputs": [{"internalType": "bytes[]", "name": "results", "type": "bytes[]"}],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// ExactInputSingleParams mirrors ISwapRouter.ExactInputSingleParams.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int // uint24
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int // 0 = no limit
}

// Router encodes calls for one SwapRouter deployment.
type Router struct {
	address common.Address
	abi     abi.ABI
}

func NewRouter(address common.Address) (*Router, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("router address is zero")
	}
	parsed, err := abi.JSON(strings.NewReader(SwapRouterABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}
	return &Router{address: address, abi: parsed}, nil
}

func (r *Router) Address() common.Address { return r.address }

// EncodeSwap packs exactInputSingle. When the output is native the router
// keeps the WETH and a multicall unwraps it to the recipient.
func (r *Router) EncodeSwap(call domain.RouterCall) ([]byte, error) {
	if call.AmountIn == nil || call.AmountOutMinimum == nil || call.Deadline == nil {
		return nil, fmt.Errorf("incomplete router call")
	}

	params := ExactInputSingleParams{
		TokenIn:           call.TokenIn,
		TokenOut:          call.TokenOut,
		Fee:               new(big.Int).SetUint64(uint64(call.Fee)),
		Recipient:         call.Recipient,
		Deadline:          call.Deadline,
		AmountIn:          call.AmountIn,
		AmountOutMinimum:  call.AmountOutMinimum,
		SqrtPriceLimitX96: new(big.Int),
	}

	if !call.UnwrapNative {
		return r.pack("exactInputSingle", params)
	}

	params.Recipient = r.address
	swap, err := r.pack("exactInputSingle", params)
	if err != nil {
		return nil, err
	}
	unwrap, err := r.pack("unwrapWETH9", call.AmountOutMinimum, call.Recipient)
	if err != nil {
		return nil, err
	}
	return r.pack("multicall", [][]byte{swap, unwrap})
}

func (r *Router) pack(method string, args ...any) ([]byte, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
