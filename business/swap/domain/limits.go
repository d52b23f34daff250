package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// RiskLimits are loaded once at startup and never mutated.
type RiskLimits struct {
	MaxSlippagePercent        float64
	MaxTransactionValueNative decimal.Decimal
	MaxGasPriceWei            *big.Int
	DeadlineMinutes           int
	RealExecutionEnabled      bool
}

// GovernorState is the emergency-stop state.
type GovernorState int32

const (
	GovernorActive GovernorState = iota
	GovernorEmergencyStopped
)

func (s GovernorState) String() string {
	switch s {
	case GovernorActive:
		return "active"
	case GovernorEmergencyStopped:
		return "emergency_stopped"
	default:
		return "unknown"
	}
}

// WalletState is read fresh for every request.
type WalletState struct {
	NativeBalance *big.Int
	TokenBalance  *big.Int // nil for native input
	Allowance     *big.Int // nil for native input
}
