package app

import (
	"context"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

func validated(in domain.AssetRef, amount string, slippage float64, dryRun bool) domain.ValidatedSwap {
	req := domain.NewSwapRequest(in, usdc, amount, slippage, dryRun, "")
	return domain.ValidatedSwap{Request: req, AmountIn: decimal.RequireFromString(amount)}
}

func TestRiskGovernor_CheckPreIO(t *testing.T) {
	g := NewRiskGovernor(defaultLimits(), &mockLogger{})

	tests := []struct {
		name string
		vs   domain.ValidatedSwap
		code apperror.Code
	}{
		{name: "within limits", vs: validated(domain.Native(), "0.5", 1, false)},
		{name: "exactly at value limit", vs: validated(domain.Native(), "1", 1, false)},
		{name: "above value limit", vs: validated(domain.Native(), "1.000000000000000001", 1, false), code: apperror.CodeValueLimitExceeded},
		{name: "token ignores native limit", vs: validated(dai, "100000", 1, false)},
		{name: "zero slippage", vs: validated(domain.Native(), "0.1", 0, false)},
		{name: "slippage at max", vs: validated(domain.Native(), "0.1", 5, false)},
		{name: "slippage above max", vs: validated(domain.Native(), "0.1", 5.01, false), code: apperror.CodeInvalidSlippage},
		{name: "slippage above 100", vs: validated(domain.Native(), "0.1", 101, false), code: apperror.CodeInvalidSlippage},
		{name: "slippage NaN", vs: validated(domain.Native(), "0.1", math.NaN(), false), code: apperror.CodeInvalidSlippage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.CheckPreIO(tt.vs)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperror.HasCode(err, tt.code) {
				t.Fatalf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestRiskGovernor_ZeroValueLimitFailsClosed(t *testing.T) {
	limits := defaultLimits()
	limits.MaxTransactionValueNative = decimal.Zero
	g := NewRiskGovernor(limits, &mockLogger{})

	err := g.CheckPreIO(validated(domain.Native(), "0.000001", 1, true))
	if !apperror.HasCode(err, apperror.CodeValueLimitExceeded) {
		t.Fatalf("got %v, want value limit", err)
	}
}

func TestRiskGovernor_StopResumeTransitions(t *testing.T) {
	g := NewRiskGovernor(defaultLimits(), &mockLogger{})
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []domain.GovernorState
	)
	g.OnStateChange(func(s domain.GovernorState, _ string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	if g.ResumeTrading(ctx) {
		t.Error("resume while active should be a no-op")
	}
	if !g.EmergencyStop(ctx, "manual") {
		t.Fatal("stop should transition")
	}
	if g.State() != domain.GovernorEmergencyStopped || g.StopReason() != "manual" {
		t.Errorf("state=%s reason=%q", g.State(), g.StopReason())
	}

	err := g.CheckPreIO(validated(domain.Native(), "0.1", 1, true))
	if !apperror.HasCode(err, apperror.CodeEmergencyStop) {
		t.Errorf("got %v, want emergency stop", err)
	}

	if !g.ResumeTrading(ctx) {
		t.Fatal("resume should transition")
	}
	if g.StopReason() != "" {
		t.Errorf("reason not cleared: %q", g.StopReason())
	}
	if len(events) != 2 || events[0] != domain.GovernorEmergencyStopped || events[1] != domain.GovernorActive {
		t.Errorf("events = %v", events)
	}
}

func TestRiskGovernor_ConcurrentStopTransitionsOnce(t *testing.T) {
	g := NewRiskGovernor(defaultLimits(), &mockLogger{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.EmergencyStop(context.Background(), "race") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("stop transitioned %d times, want 1", wins)
	}
}

func TestRiskGovernor_CheckPreBroadcast(t *testing.T) {
	g := NewRiskGovernor(defaultLimits(), &mockLogger{})

	if _, err := g.CheckPreBroadcast(validated(domain.Native(), "0.1", 1, true)); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("dry run got %v, want invalid state", err)
	}

	permit, err := g.CheckPreBroadcast(validated(domain.Native(), "0.1", 1, false))
	if err != nil || !permit.valid() {
		t.Fatalf("expected permit, got %v", err)
	}

	g.EmergencyStop(context.Background(), "halt")
	if _, err := g.CheckPreBroadcast(validated(domain.Native(), "0.1", 1, false)); !apperror.HasCode(err, apperror.CodeEmergencyStop) {
		t.Errorf("got %v, want emergency stop", err)
	}
}

func TestRiskGovernor_CheckGasPrice(t *testing.T) {
	g := NewRiskGovernor(defaultLimits(), &mockLogger{})

	if err := g.CheckGasPrice(big.NewInt(100_000_000_000)); err != nil {
		t.Errorf("price at cap rejected: %v", err)
	}
	if err := g.CheckGasPrice(big.NewInt(100_000_000_001)); !apperror.HasCode(err, apperror.CodeGasPriceTooHigh) {
		t.Errorf("got %v, want gas price too high", err)
	}

	for _, limit := range []*big.Int{nil, big.NewInt(0)} {
		limits := defaultLimits()
		limits.MaxGasPriceWei = limit
		if err := NewRiskGovernor(limits, &mockLogger{}).CheckGasPrice(big.NewInt(1)); !apperror.HasCode(err, apperror.CodeGasPriceTooHigh) {
			t.Errorf("cap %v: got %v, want gas price too high", limit, err)
		}
	}
}

func TestRiskGovernor_ZeroSlippageCapAllowsOnlyExactOutput(t *testing.T) {
	limits := defaultLimits()
	limits.MaxSlippagePercent = 0
	g := NewRiskGovernor(limits, &mockLogger{})

	if err := g.CheckPreIO(validated(domain.Native(), "0.1", 0, false)); err != nil {
		t.Errorf("zero slippage rejected: %v", err)
	}
	if err := g.CheckPreIO(validated(domain.Native(), "0.1", 0.5, false)); !apperror.HasCode(err, apperror.CodeInvalidSlippage) {
		t.Errorf("got %v, want invalid slippage", err)
	}
}
