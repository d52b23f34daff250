package app

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// GovernorListener observes emergency-stop transitions.
type GovernorListener func(state domain.GovernorState, reason string)

// ExecutionPermit is only minted by RiskGovernor.CheckPreBroadcast and is
// required by Executor.Execute.
type ExecutionPermit struct {
	requestID string
}

func (p ExecutionPermit) valid() bool { return p.requestID != "" }

// RiskGovernor owns the risk limits and the emergency-stop state.
// State reads and transitions are atomic, so a stop is observed by every
// gate check that starts after it.
type RiskGovernor struct {
	limits domain.RiskLimits
	state  atomic.Int32
	reason atomic.Pointer[string]

	mu        sync.Mutex
	listeners []GovernorListener

	logger logger.LoggerInterface
}

func NewRiskGovernor(limits domain.RiskLimits, log logger.LoggerInterface) *RiskGovernor {
	g := &RiskGovernor{limits: limits, logger: log}
	g.state.Store(int32(domain.GovernorActive))
	return g
}

func (g *RiskGovernor) Limits() domain.RiskLimits {
	return g.limits
}

func (g *RiskGovernor) State() domain.GovernorState {
	return domain.GovernorState(g.state.Load())
}

// StopReason is the reason given to the last EmergencyStop.
func (g *RiskGovernor) StopReason() string {
	if r := g.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// OnStateChange registers fn for future transitions.
func (g *RiskGovernor) OnStateChange(fn GovernorListener) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// EmergencyStop halts trading. It reports false if already stopped.
func (g *RiskGovernor) EmergencyStop(ctx context.Context, reason string) bool {
	if !g.state.CompareAndSwap(int32(domain.GovernorActive), int32(domain.GovernorEmergencyStopped)) {
		return false
	}
	g.reason.Store(&reason)
	g.logger.Warn(ctx, "emergency stop engaged", "reason", reason)
	g.notify(domain.GovernorEmergencyStopped, reason)
	return true
}

// ResumeTrading clears an emergency stop. It reports false if not stopped.
func (g *RiskGovernor) ResumeTrading(ctx context.Context) bool {
	if !g.state.CompareAndSwap(int32(domain.GovernorEmergencyStopped), int32(domain.GovernorActive)) {
		return false
	}
	g.reason.Store(nil)
	g.logger.Info(ctx, "trading resumed")
	g.notify(domain.GovernorActive, "")
	return true
}

// CheckPreIO is the cheap gate run before any network call.
func (g *RiskGovernor) CheckPreIO(vs domain.ValidatedSwap) error {
	if g.State() == domain.GovernorEmergencyStopped {
		return apperror.New(apperror.CodeEmergencyStop, apperror.WithContext(g.StopReason()))
	}

	s := vs.Request.SlippagePercent
	if math.IsNaN(s) || s < 0 || s > 100 {
		return apperror.Validation(apperror.CodeInvalidSlippage, fmt.Sprintf("%v not within [0, 100]", s))
	}
	if s > g.limits.MaxSlippagePercent {
		return apperror.Validation(apperror.CodeInvalidSlippage,
			fmt.Sprintf("%v exceeds configured max %v", s, g.limits.MaxSlippagePercent))
	}

	if vs.Request.AssetIn.IsNative() && vs.AmountIn.GreaterThan(g.limits.MaxTransactionValueNative) {
		return apperror.Validation(apperror.CodeValueLimitExceeded,
			fmt.Sprintf("%s > %s", vs.AmountIn, g.limits.MaxTransactionValueNative))
	}

	return nil
}

// CheckPreBroadcast repeats the gate right before signing and mints the
// permit the executor needs. Dry runs never get a permit.
func (g *RiskGovernor) CheckPreBroadcast(vs domain.ValidatedSwap) (ExecutionPermit, error) {
	if vs.Request.DryRun {
		return ExecutionPermit{}, apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("dry run cannot be executed"))
	}
	if err := g.CheckPreIO(vs); err != nil {
		return ExecutionPermit{}, err
	}
	return ExecutionPermit{requestID: vs.Request.ID}, nil
}

// CheckGasPrice rejects prices above the configured cap. A missing or zero
// cap rejects every price.
func (g *RiskGovernor) CheckGasPrice(price *big.Int) error {
	if g.limits.MaxGasPriceWei == nil || g.limits.MaxGasPriceWei.Sign() <= 0 {
		return apperror.New(apperror.CodeGasPriceTooHigh, apperror.WithContext("no gas price cap configured"))
	}
	if price.Cmp(g.limits.MaxGasPriceWei) > 0 {
		return apperror.New(apperror.CodeGasPriceTooHigh,
			apperror.WithContext(fmt.Sprintf("%s wei > %s wei", price, g.limits.MaxGasPriceWei)))
	}
	return nil
}

func (g *RiskGovernor) notify(state domain.GovernorState, reason string) {
	g.mu.Lock()
	ls := append([]GovernorListener(nil), g.listeners...)
	g.mu.Unlock()

	for _, fn := range ls {
		fn(state, reason)
	}
}
