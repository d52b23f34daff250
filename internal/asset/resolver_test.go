package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeDecimals struct {
	calls int
	d     uint8
	err   error
}

func (f *fakeDecimals) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	f.calls++
	return f.d, f.err
}

func TestResolver_Decimals(t *testing.T) {
	ctx := context.Background()
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("registry_first", func(t *testing.T) {
		chain := &fakeDecimals{d: 9}
		r := NewResolver(DefaultRegistry(), ChainIDEthereum, chain)
		d, err := r.Decimals(ctx, AddrUSDCEthereum)
		if err != nil || d != 6 {
			t.Fatalf("Decimals(USDC) = %d, %v; want 6", d, err)
		}
		if chain.calls != 0 {
			t.Errorf("chain consulted for a registered token")
		}
	})

	t.Run("native", func(t *testing.T) {
		r := NewResolver(NewRegistry(), ChainIDEthereum, nil)
		d, err := r.Decimals(ctx, common.Address{})
		if err != nil || d != 18 {
			t.Fatalf("Decimals(native) = %d, %v; want 18", d, err)
		}
	})

	t.Run("chain_fallback", func(t *testing.T) {
		chain := &fakeDecimals{d: 8}
		r := NewResolver(DefaultRegistry(), ChainIDEthereum, chain)
		d, err := r.Decimals(ctx, unknown)
		if err != nil || d != 8 {
			t.Fatalf("Decimals(unknown) = %d, %v; want 8", d, err)
		}
	})

	t.Run("chain_error_propagates", func(t *testing.T) {
		chain := &fakeDecimals{err: errors.New("boom")}
		r := NewResolver(DefaultRegistry(), ChainIDEthereum, chain)
		if _, err := r.Decimals(ctx, unknown); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no_chain_defaults", func(t *testing.T) {
		r := NewResolver(nil, ChainIDEthereum, nil)
		d, err := r.Decimals(ctx, unknown)
		if err != nil || d != DefaultDecimals {
			t.Fatalf("Decimals = %d, %v; want %d", d, err, DefaultDecimals)
		}
	})
}

func TestResolver_Symbol(t *testing.T) {
	r := NewResolver(DefaultRegistry(), ChainIDEthereum, nil)
	if s, ok := r.Symbol(common.Address{}); !ok || s != "ETH" {
		t.Errorf("Symbol(native) = %q, %v", s, ok)
	}
	if s, ok := r.Symbol(AddrWBTCEthereum); !ok || s != "WBTC" {
		t.Errorf("Symbol(WBTC) = %q, %v", s, ok)
	}
	if _, ok := r.Symbol(common.HexToAddress("0x01")); ok {
		t.Error("unknown token should have no symbol")
	}
}
