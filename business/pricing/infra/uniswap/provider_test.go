package uniswap

import (
	"context"
	"errors"
	"math/big"
	"slices"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeQuoter answers quoteExactInputSingle with a per-fee-tier output.
type fakeQuoter struct {
	t      *testing.T
	abi    abi.ABI
	byTier map[uint64]int64 // 0 means revert

	mu    sync.Mutex
	tiers []uint64
}

func newFakeQuoter(t *testing.T, byTier map[uint64]int64) *fakeQuoter {
	return &fakeQuoter{t: t, abi: quoterABI, byTier: byTier}
}

func (f *fakeQuoter) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	// Static tuple: tokenIn, tokenOut, amountIn, fee, sqrtPriceLimit.
	fee := new(big.Int).SetBytes(msg.Data[4+32*3 : 4+32*4]).Uint64()
	f.mu.Lock()
	f.tiers = append(f.tiers, fee)
	f.mu.Unlock()

	out, ok := f.byTier[fee]
	if !ok || out == 0 {
		return nil, errors.New("execution reverted")
	}
	return f.abi.Methods["quoteExactInputSingle"].Outputs.Pack(
		big.NewInt(out), big.NewInt(1), uint32(2), big.NewInt(90_000))
}

func newTestProvider(t *testing.T, q ContractCaller, cfg config.UniswapConfig) *Provider {
	t.Helper()
	p, err := NewProvider(q, cfg, &mockLogger{})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func TestProvider_PicksBestFeeTier(t *testing.T) {
	q := newFakeQuoter(t, map[uint64]int64{500: 990, 3000: 1000, 10000: 0})
	p := newTestProvider(t, q, config.UniswapConfig{DefaultFeeTier: 3000, FeeTiers: []int{500, 3000, 10000}})

	got, err := p.Quote(context.Background(), tokenA, tokenB, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if got.AmountOut.Int64() != 1000 || got.FeeTier != 3000 {
		t.Errorf("got out=%s tier=%d, want 1000 at 3000", got.AmountOut, got.FeeTier)
	}
	if got.GasEstimate != 90_000 || got.Source != sourceName {
		t.Errorf("unexpected metadata %+v", got)
	}
	tried := slices.Sorted(slices.Values(q.tiers))
	if !slices.Equal(tried, []uint64{500, 3000, 10000}) {
		t.Errorf("tiers tried = %v, want each tier once", q.tiers)
	}
}

func TestProvider_TieGoesToDefaultTier(t *testing.T) {
	q := newFakeQuoter(t, map[uint64]int64{500: 1000, 3000: 1000, 10000: 1000})
	p := newTestProvider(t, q, config.UniswapConfig{DefaultFeeTier: 3000, FeeTiers: []int{500, 10000}})

	got, err := p.Quote(context.Background(), tokenA, tokenB, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if got.FeeTier != 3000 {
		t.Errorf("tier = %d, want the default 3000 on a tie", got.FeeTier)
	}
}

func TestProvider_NoPool(t *testing.T) {
	q := newFakeQuoter(t, map[uint64]int64{})
	p := newTestProvider(t, q, config.UniswapConfig{DefaultFeeTier: 3000})

	_, err := p.Quote(context.Background(), tokenA, tokenB, big.NewInt(1))
	if !apperror.HasCode(err, apperror.CodeUniswapPoolNotFound) {
		t.Fatalf("err = %v, want UNISWAP_POOL_NOT_FOUND", err)
	}
}

func TestProvider_SameToken(t *testing.T) {
	q := newFakeQuoter(t, map[uint64]int64{3000: 1})
	p := newTestProvider(t, q, config.UniswapConfig{DefaultFeeTier: 3000})

	_, err := p.Quote(context.Background(), tokenA, tokenA, big.NewInt(1))
	if !apperror.HasCode(err, apperror.CodeInvalidQuote) {
		t.Fatalf("err = %v, want INVALID_QUOTE", err)
	}
	if len(q.tiers) != 0 {
		t.Error("quoter called for identical tokens")
	}
}

func TestFeeTiers(t *testing.T) {
	tests := []struct {
		name       string
		def        int
		configured []int
		want       []uint32
	}{
		{"standard_when_unset", 0, nil, []uint32{500, 3000, 10000}},
		{"default_first", 3000, nil, []uint32{3000, 500, 10000}},
		{"configured_only", 500, []int{100, 500}, []uint32{500, 100}},
		{"drops_invalid", 0, []int{-1, 0, 3000}, []uint32{3000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feeTiers(tt.def, tt.configured)
			if len(got) != len(tt.want) {
				t.Fatalf("feeTiers = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("feeTiers = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestProvider_RevertsDoNotTripBreaker(t *testing.T) {
	q := newFakeQuoter(t, map[uint64]int64{})
	p := newTestProvider(t, q, config.UniswapConfig{DefaultFeeTier: 3000})

	for i := 0; i < 10; i++ {
		p.Quote(context.Background(), tokenA, tokenB, big.NewInt(1))
	}
	if n := len(q.tiers); n != 30 {
		t.Errorf("quoter reached %d times, want 30 (breaker must stay closed on reverts)", n)
	}
}
