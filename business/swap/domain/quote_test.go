package domain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/internal/apperror"
)

func TestCalculateMinOutput(t *testing.T) {
	tests := []struct {
		name      string
		estimated string
		slippage  float64
		want      string
	}{
		{name: "zero slippage keeps all", estimated: "1000", slippage: 0, want: "1000"},
		{name: "one percent", estimated: "1000", slippage: 1, want: "990"},
		{name: "full slippage", estimated: "1000", slippage: 100, want: "0"},
		{name: "rounds down odd amount", estimated: "999", slippage: 1, want: "989"},
		{name: "fractional slippage", estimated: "12345", slippage: 0.5, want: "12283"},
		{name: "tiny amount floors to zero", estimated: "1", slippage: 0.1, want: "0"},
		{name: "usdc six decimals", estimated: "2000000000", slippage: 3, want: "1940000000"},
		{name: "large wei value", estimated: "123456789012345678901", slippage: 2.5, want: "120370369287037036928"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, _ := new(big.Int).SetString(tt.estimated, 10)
			got, err := CalculateMinOutput(est, tt.slippage)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}

			// never exceeds the exact real-valued floor
			exact := decimal.NewFromBigInt(est, 0).
				Mul(decimal.NewFromInt(100).Sub(decimal.NewFromFloat(tt.slippage))).
				Div(decimal.NewFromInt(100))
			if decimal.NewFromBigInt(got, 0).GreaterThan(exact) {
				t.Errorf("floor %s exceeds exact %s", got, exact)
			}
		})
	}
}

func TestCalculateMinOutput_RejectsOutOfRange(t *testing.T) {
	for _, s := range []float64{-0.1, 100.01, 250} {
		_, err := CalculateMinOutput(big.NewInt(100), s)
		if !apperror.HasCode(err, apperror.CodeInvalidSlippage) {
			t.Errorf("slippage %v: err = %v, want InvalidSlippage", s, err)
		}
	}
}

func TestNewSwapQuote_ZeroOutputUnavailable(t *testing.T) {
	_, err := NewSwapQuote(big.NewInt(1), PriceQuote{AmountOut: big.NewInt(0)}, 1)
	if Categorize(err) != CategoryPreBroadcast {
		t.Fatalf("category = %s, want pre_broadcast (err=%v)", Categorize(err), err)
	}
}

func BenchmarkCalculateMinOutput(b *testing.B) {
	est := decimal.RequireFromString("123456789012345678901").BigInt()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = CalculateMinOutput(est, 0.5)
	}
}
