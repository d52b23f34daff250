package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

// DefaultGasMarginPercent is added on top of the node's estimate.
const DefaultGasMarginPercent = 20

// Simulator estimates gas without broadcasting. A failed estimate means the
// transaction would revert.
type Simulator struct {
	gas           GasEstimator
	governor      *RiskGovernor
	marginPercent uint64
}

func NewSimulator(gas GasEstimator, governor *RiskGovernor, marginPercent uint64) *Simulator {
	return &Simulator{gas: gas, governor: governor, marginPercent: marginPercent}
}

// Simulate returns tx with its gas limit set and the estimated cost.
func (s *Simulator) Simulate(ctx context.Context, from common.Address, tx domain.SwapTransaction) (domain.SwapTransaction, domain.Simulation, error) {
	to := tx.To
	estimate, err := s.gas.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: tx.Value,
		Data:  tx.Data,
	})
	if err != nil {
		return tx, domain.Simulation{}, apperror.New(apperror.CodeSimulationFailed,
			apperror.WithCause(err),
			apperror.WithContext(err.Error()))
	}

	price, err := s.gas.GasPrice(ctx)
	if err != nil {
		return tx, domain.Simulation{}, apperror.External(apperror.CodeEthereumRPCError, "gas price", err)
	}
	if err := s.governor.CheckGasPrice(price); err != nil {
		return tx, domain.Simulation{}, err
	}

	limit := estimate + estimate*s.marginPercent/100
	sim := domain.Simulation{
		GasEstimate:      estimate,
		GasLimit:         limit,
		GasPriceWei:      price,
		EstimatedCostWei: new(big.Int).Mul(new(big.Int).SetUint64(limit), price),
	}
	return tx.WithGasLimit(limit), sim, nil
}
