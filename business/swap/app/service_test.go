package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

func nativeToUSDC(amount string, dryRun bool) domain.SwapRequest {
	return domain.NewSwapRequest(domain.Native(), usdc, amount, 1, dryRun, "test")
}

func requireCode(t *testing.T, res domain.ExecutionResult, code apperror.Code) {
	t.Helper()
	if res.Success {
		t.Fatalf("expected failure with %s, got success", code)
	}
	if got := apperror.GetCode(res.Err); got != code {
		t.Fatalf("code = %s, want %s (err=%v)", got, code, res.Err)
	}
}

func TestExecute_DryRunNativeToToken(t *testing.T) {
	f := newFixture(t, defaultLimits())

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", true))

	if !res.Success || !res.DryRun {
		t.Fatalf("expected dry-run success, got success=%v dryRun=%v err=%v", res.Success, res.DryRun, res.Err)
	}
	if f.chain.count("send") != 0 {
		t.Errorf("send called %d times on a dry run", f.chain.count("send"))
	}
	if res.Simulation == nil || res.Simulation.GasLimit != 180_000 {
		t.Errorf("simulation = %+v, want gas limit 180000", res.Simulation)
	}
	if res.Quote == nil || res.Quote.MinOutputAfterSlippage.Int64() != 34_650_000 {
		t.Errorf("quote = %+v, want min out 34650000", res.Quote)
	}
	if f.chain.lastMsg.Value.Cmp(ether("0.01")) != 0 {
		t.Errorf("simulated value = %s, want amountIn", f.chain.lastMsg.Value)
	}

	st := f.svc.Stats()
	if st.TotalRequested != 1 || st.TotalDryRuns != 1 || st.TotalExecuted != 0 || st.TotalFailed != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExecute_SameTokenRejectedBeforeIO(t *testing.T) {
	f := newFixture(t, defaultLimits())

	res := f.svc.Execute(context.Background(), domain.NewSwapRequest(usdc, usdc, "1000", 1, false, "test"))

	requireCode(t, res, apperror.CodeSameTokenSwap)
	if res.Category() != domain.CategoryValidation {
		t.Errorf("category = %s, want validation", res.Category())
	}
	if f.chain.total() != 0 || f.price.count() != 0 {
		t.Errorf("expected no I/O, chain=%d price=%d", f.chain.total(), f.price.count())
	}
	if f.svc.Stats().TotalFailed != 1 {
		t.Errorf("failed = %d, want 1", f.svc.Stats().TotalFailed)
	}
}

func TestExecute_EmergencyStopAndResume(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()
	req := nativeToUSDC("0.01", true)

	if !f.governor.EmergencyStop(ctx, "operator drill") {
		t.Fatal("stop should transition")
	}
	if f.governor.EmergencyStop(ctx, "again") {
		t.Error("second stop should be a no-op")
	}

	res := f.svc.Execute(ctx, req)
	requireCode(t, res, apperror.CodeEmergencyStop)
	if f.chain.total() != 0 {
		t.Errorf("chain touched %d times while stopped", f.chain.total())
	}

	if !f.governor.ResumeTrading(ctx) {
		t.Fatal("resume should transition")
	}
	res = f.svc.Execute(ctx, req)
	if !res.Success {
		t.Fatalf("expected success after resume, got %v", res.Err)
	}
}

func TestExecute_RealTradingDisabled(t *testing.T) {
	limits := defaultLimits()
	limits.RealExecutionEnabled = false
	f := newFixture(t, limits)

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", false))

	requireCode(t, res, apperror.CodeRealTradingDisabled)
	if res.Broadcast {
		t.Error("broadcast flag set")
	}
	if f.chain.count("send") != 0 {
		t.Errorf("send called %d times", f.chain.count("send"))
	}
}

func TestExecute_RealSwapConfirmed(t *testing.T) {
	f := newFixture(t, defaultLimits())

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.5", false))

	if !res.Success || res.DryRun {
		t.Fatalf("expected executed swap, got %+v", res)
	}
	if res.TxHash == nil || !res.Broadcast {
		t.Fatal("expected broadcast tx hash")
	}
	if bn, ok := res.BlockNumber(); !ok || bn != 19_000_000 {
		t.Errorf("block = %d, %v", bn, ok)
	}

	if len(f.chain.sent) != 1 {
		t.Fatalf("sent %d txs, want 1", len(f.chain.sent))
	}
	tx := f.chain.sent[0]
	if tx.Nonce() != 7 {
		t.Errorf("nonce = %d, want 7", tx.Nonce())
	}
	if *tx.To() != routerAddr {
		t.Errorf("to = %s, want router", tx.To().Hex())
	}
	if tx.Value().Cmp(ether("0.5")) != 0 {
		t.Errorf("value = %s, want 0.5 ether", tx.Value())
	}
	if tx.Gas() != 180_000 {
		t.Errorf("gas = %d, want 180000", tx.Gas())
	}

	st := f.svc.Stats()
	if st.TotalExecuted != 1 || st.TotalFailed != 0 {
		t.Errorf("stats = %+v", st)
	}
	if st.TotalVolume["native"].Cmp(ether("0.5")) != 0 {
		t.Errorf("volume = %v", st.TotalVolume)
	}
	if st.TotalGasUsed != 140_000 {
		t.Errorf("gas used = %d", st.TotalGasUsed)
	}
	if st.LastSwapTime.IsZero() {
		t.Error("last swap time not set")
	}
}

func TestExecute_TokenInputCarriesNoValue(t *testing.T) {
	f := newFixture(t, defaultLimits())

	res := f.svc.Execute(context.Background(), domain.NewSwapRequest(usdc, domain.Native(), "250", 1, false, "test"))
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}

	tx := f.chain.sent[0]
	if tx.Value().Sign() != 0 {
		t.Errorf("value = %s, want 0 for token input", tx.Value())
	}
	call := f.router.last()
	if call.TokenIn != common.HexToAddress(usdcHex) || call.TokenOut != wethAddr || !call.UnwrapNative {
		t.Errorf("router call = %+v", call)
	}
	if call.AmountIn.Int64() != 250_000_000 {
		t.Errorf("amountIn = %s, want 250 USDC in units", call.AmountIn)
	}
	if f.chain.count("allowance") != 1 || f.chain.count("token_balance") != 1 {
		t.Errorf("expected token balance and allowance reads, calls=%v", f.chain.calls)
	}
}

func TestExecute_SimulationFailureNeverBroadcasts(t *testing.T) {
	for _, dryRun := range []bool{true, false} {
		t.Run(fmt.Sprintf("dryRun=%v", dryRun), func(t *testing.T) {
			f := newFixture(t, defaultLimits())
			f.chain.estimateErr = errors.New("execution reverted: STF")

			res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", dryRun))

			requireCode(t, res, apperror.CodeSimulationFailed)
			if res.Category() != domain.CategoryPreBroadcast {
				t.Errorf("category = %s", res.Category())
			}
			if f.chain.count("send") != 0 {
				t.Error("send called after failed simulation")
			}
			if res.Broadcast {
				t.Error("broadcast flag set")
			}
		})
	}
}

func TestExecute_PostBroadcastFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mockChain)
		code  apperror.Code
	}{
		{
			name:  "reverted on chain",
			setup: func(c *mockChain) { c.receiptStatus = 0 },
			code:  apperror.CodeTransactionReverted,
		},
		{
			name:  "confirmation timeout",
			setup: func(c *mockChain) { c.receiptMissing = true },
			code:  apperror.CodeConfirmationTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultLimits())
			tt.setup(f.chain)

			res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", false))

			requireCode(t, res, tt.code)
			if !res.Broadcast || res.TxHash == nil {
				t.Error("post-broadcast failure must carry the tx hash")
			}
			if res.Category() != domain.CategoryExecution {
				t.Errorf("category = %s, want execution", res.Category())
			}
			st := f.svc.Stats()
			if st.TotalFailed != 1 || st.TotalBroadcastFailed != 1 || st.TotalExecuted != 0 {
				t.Errorf("stats = %+v", st)
			}
		})
	}
}

func TestExecute_SendRejectedReleasesNonce(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.chain.sendErr = errors.New("nonce too low")

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", false))

	requireCode(t, res, apperror.CodeExecutionFailed)
	if res.Broadcast {
		t.Error("rejected send is not a broadcast")
	}
	if len(f.nonces.released) != 1 || f.nonces.released[0] != 7 {
		t.Errorf("released = %v, want [7]", f.nonces.released)
	}
	if f.svc.Stats().TotalBroadcastFailed != 0 {
		t.Error("rejected send counted as broadcast failure")
	}
}

func TestExecute_PreIOFailures(t *testing.T) {
	tests := []struct {
		name  string
		req   domain.SwapRequest
		setup func(*fixture)
		code  apperror.Code
	}{
		{
			name: "native value above limit",
			req:  nativeToUSDC("1.5", true),
			code: apperror.CodeValueLimitExceeded,
		},
		{
			name: "slippage above configured max",
			req:  domain.NewSwapRequest(domain.Native(), usdc, "0.1", 7, true, ""),
			code: apperror.CodeInvalidSlippage,
		},
		{
			name: "negative slippage",
			req:  domain.NewSwapRequest(domain.Native(), usdc, "0.1", -1, true, ""),
			code: apperror.CodeInvalidSlippage,
		},
		{
			name: "zero amount",
			req:  nativeToUSDC("0", true),
			code: apperror.CodeZeroOrNegativeAmount,
		},
		{
			name: "malformed amount",
			req:  nativeToUSDC("1e-3x", true),
			code: apperror.CodeZeroOrNegativeAmount,
		},
		{
			name: "missing output asset",
			req:  domain.SwapRequest{ID: "x", AssetIn: domain.Native(), AmountIn: "0.1"},
			code: apperror.CodeMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultLimits())
			res := f.svc.Execute(context.Background(), tt.req)
			requireCode(t, res, tt.code)
			if f.chain.total() != 0 {
				t.Errorf("chain touched %d times", f.chain.total())
			}
		})
	}
}

func TestExecute_TokenAmountIsNotNativeLimited(t *testing.T) {
	f := newFixture(t, defaultLimits())
	res := f.svc.Execute(context.Background(), domain.NewSwapRequest(usdc, dai, "5000", 1, true, ""))
	if !res.Success {
		t.Fatalf("token input should ignore the native value limit: %v", res.Err)
	}
}

func TestExecute_WalletChecks(t *testing.T) {
	tests := []struct {
		name  string
		req   domain.SwapRequest
		setup func(*mockChain)
		code  apperror.Code
	}{
		{
			name:  "native balance short",
			req:   nativeToUSDC("0.5", true),
			setup: func(c *mockChain) { c.native = ether("0.1") },
			code:  apperror.CodeInsufficientBalance,
		},
		{
			name:  "token balance short",
			req:   domain.NewSwapRequest(usdc, dai, "100", 1, true, ""),
			setup: func(c *mockChain) { c.token = big.NewInt(99_999_999) },
			code:  apperror.CodeInsufficientBalance,
		},
		{
			name:  "allowance short",
			req:   domain.NewSwapRequest(usdc, dai, "100", 1, true, ""),
			setup: func(c *mockChain) { c.allowance = big.NewInt(1) },
			code:  apperror.CodeInsufficientAllowance,
		},
		{
			name:  "rpc read fails",
			req:   nativeToUSDC("0.5", true),
			setup: func(c *mockChain) { c.readErr = errors.New("connection refused") },
			code:  apperror.CodeExternalServiceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultLimits())
			tt.setup(f.chain)
			res := f.svc.Execute(context.Background(), tt.req)
			requireCode(t, res, tt.code)
			if f.chain.count("estimate_gas") != 0 || f.price.count() != 0 {
				t.Error("pipeline continued past verification")
			}
		})
	}
}

func TestExecute_QuoteAndGasGuards(t *testing.T) {
	t.Run("price source down", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		f.price.err = errors.New("no pool")
		res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", true))
		requireCode(t, res, apperror.CodeQuoteUnavailable)
	})

	t.Run("zero quote", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		f.price.out = big.NewInt(0)
		res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", true))
		requireCode(t, res, apperror.CodeQuoteUnavailable)
	})

	t.Run("gas price above cap", func(t *testing.T) {
		f := newFixture(t, defaultLimits())
		f.chain.gasPrice = big.NewInt(500_000_000_000)
		res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", false))
		requireCode(t, res, apperror.CodeGasPriceTooHigh)
		if f.chain.count("send") != 0 {
			t.Error("send called above gas cap")
		}
	})
}

func TestExecute_StopDuringFlightBlocksBroadcast(t *testing.T) {
	f := newFixture(t, defaultLimits())
	f.price.onQuote = func() { f.governor.EmergencyStop(context.Background(), "mid-flight") }

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", false))

	requireCode(t, res, apperror.CodeEmergencyStop)
	if res.Stage != domain.StagePreBroadcastGate {
		t.Errorf("stage = %s, want pre-broadcast gate", res.Stage)
	}
	if f.chain.count("send") != 0 {
		t.Error("send called after stop")
	}
}

func TestExecute_NoSignerDisablesPipeline(t *testing.T) {
	f := newFixture(t, defaultLimits())
	svc, err := NewService(Deps{
		Governor: f.governor,
		Stats:    NewStatisticsRecorder(),
	}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}

	res := svc.Execute(context.Background(), nativeToUSDC("0.01", true))
	requireCode(t, res, apperror.CodeConfigurationError)
	if res.Category() != domain.CategoryConfiguration {
		t.Errorf("category = %s", res.Category())
	}
}

func TestExecuteParams_MalformedAddress(t *testing.T) {
	f := newFixture(t, defaultLimits())

	res := f.svc.ExecuteParams(context.Background(), domain.SwapParams{
		AssetIn:  "native",
		AssetOut: "0x1234",
		AmountIn: "0.1",
		DryRun:   true,
	})

	requireCode(t, res, apperror.CodeInvalidAddress)
	if res.RequestID == "" {
		t.Error("result should carry a request id")
	}
	if st := f.svc.Stats(); st.TotalRequested != 1 || st.TotalFailed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExecute_SinksNeverAffectOutcome(t *testing.T) {
	f := newFixture(t, defaultLimits())
	capture := &captureSink{}
	f.svc.AddSink(panicSink{})
	f.svc.AddSink(capture)

	res := f.svc.Execute(context.Background(), nativeToUSDC("0.01", true))
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if len(capture.results) != 1 || capture.results[0].RequestID != res.RequestID {
		t.Errorf("capture got %d results", len(capture.results))
	}
	if st := f.svc.Stats(); st.TotalDryRuns != 1 || st.TotalFailed != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExecute_StatisticsInvariantUnderConcurrency(t *testing.T) {
	f := newFixture(t, defaultLimits())
	ctx := context.Background()

	reqs := []domain.SwapRequest{
		nativeToUSDC("0.01", true),
		nativeToUSDC("0.02", false),
		domain.NewSwapRequest(usdc, usdc, "1", 1, false, ""),
		nativeToUSDC("5", false),
	}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 32 {
				f.governor.EmergencyStop(ctx, "race")
			}
			f.svc.Execute(ctx, reqs[i%len(reqs)])
		}(i)
	}
	wg.Wait()

	st := f.svc.Stats()
	if st.TotalRequested != 64 {
		t.Fatalf("requested = %d, want 64", st.TotalRequested)
	}
	if st.TotalExecuted+st.TotalFailed > st.TotalRequested {
		t.Fatalf("invariant broken: %+v", st)
	}
	if st.TotalExecuted+st.TotalFailed+st.TotalDryRuns != st.TotalRequested {
		t.Errorf("every request should resolve exactly once: %+v", st)
	}

	seen := make(map[uint64]bool)
	for _, tx := range f.chain.sent {
		if seen[tx.Nonce()] {
			t.Fatalf("nonce %d reused", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
}
