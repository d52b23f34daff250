package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Stage names the pipeline step a result ended at.
type Stage string

const (
	StageConfiguration    Stage = "configuration"
	StageValidation       Stage = "validation"
	StageRiskGate         Stage = "risk_gate"
	StageVerification     Stage = "verification"
	StageQuote            Stage = "quote"
	StageBuild            Stage = "build"
	StageSimulation       Stage = "simulation"
	StagePreBroadcastGate Stage = "pre_broadcast_gate"
	StageExecution        Stage = "execution"
	StageCompleted        Stage = "completed"
)

// ExecutionResult is the single terminal value produced per request.
type ExecutionResult struct {
	RequestID string
	Request   SwapRequest
	Success   bool
	DryRun    bool

	TxHash  *common.Hash
	Receipt *Receipt

	Quote      *SwapQuote
	Simulation *Simulation

	Err       error
	Stage     Stage
	Broadcast bool

	Duration    time.Duration
	CompletedAt time.Time
}

// Category classifies Err; empty on success.
func (r ExecutionResult) Category() Category {
	if r.Err == nil {
		return ""
	}
	return Categorize(r.Err)
}

// BlockNumber is the inclusion block, if the swap was mined.
func (r ExecutionResult) BlockNumber() (uint64, bool) {
	if r.Receipt == nil {
		return 0, false
	}
	return r.Receipt.BlockNumber, true
}

// GasUsed is the gas the mined transaction consumed.
func (r ExecutionResult) GasUsed() (uint64, bool) {
	if r.Receipt == nil {
		return 0, false
	}
	return r.Receipt.GasUsed, true
}

// EstimatedCostWei is the simulated gas cost, if simulation ran.
func (r ExecutionResult) EstimatedCostWei() *big.Int {
	if r.Simulation == nil {
		return nil
	}
	return r.Simulation.EstimatedCostWei
}

// Statistics is a point-in-time copy of the pipeline counters.
// TotalExecuted + TotalFailed never exceeds TotalRequested.
type Statistics struct {
	TotalRequested       uint64
	TotalExecuted        uint64
	TotalFailed          uint64
	TotalBroadcastFailed uint64
	TotalDryRuns         uint64
	// TotalVolume is the summed input amount per AssetRef string.
	TotalVolume  map[string]*big.Int
	TotalGasUsed uint64
	TotalFeesWei *big.Int
	LastSwapTime time.Time
}
