package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RouterCall is the exact-input single-pool swap handed to the router encoder.
type RouterCall struct {
	TokenIn          common.Address
	TokenOut         common.Address
	Fee              uint32
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	// UnwrapNative delivers the output as native coin to Recipient.
	UnwrapNative bool
}

// SwapTransaction is built once per request and never mutated.
type SwapTransaction struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	Deadline int64
}

// WithGasLimit returns a copy carrying the simulated gas limit.
func (t SwapTransaction) WithGasLimit(gas uint64) SwapTransaction {
	cp := t
	cp.Data = append([]byte(nil), t.Data...)
	if t.Value != nil {
		cp.Value = new(big.Int).Set(t.Value)
	}
	cp.GasLimit = gas
	return cp
}

// Simulation is the outcome of a successful gas estimate.
type Simulation struct {
	GasEstimate      uint64
	GasLimit         uint64
	GasPriceWei      *big.Int
	EstimatedCostWei *big.Int
}

// Receipt is the confirmed outcome of a broadcast swap.
type Receipt struct {
	TxHash            common.Hash
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}
