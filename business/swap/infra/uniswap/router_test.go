package uniswap

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
)

var (
	routerAddr = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	weth       = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc       = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	recipient  = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func testCall(unwrap bool) domain.RouterCall {
	return domain.RouterCall{
		TokenIn:          weth,
		TokenOut:         usdc,
		Fee:              3000,
		Recipient:        recipient,
		Deadline:         big.NewInt(1_700_000_000),
		AmountIn:         big.NewInt(1e16),
		AmountOutMinimum: big.NewInt(34_000_000),
		UnwrapNative:     unwrap,
	}
}

func decodeExactInput(t *testing.T, r *Router, data []byte) ExactInputSingleParams {
	t.Helper()
	method, err := r.abi.MethodById(data[:4])
	if err != nil {
		t.Fatalf("unknown selector: %v", err)
	}
	if method.Name != "exactInputSingle" {
		t.Fatalf("method = %s, want exactInputSingle", method.Name)
	}
	out, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	return *abi.ConvertType(out[0], new(ExactInputSingleParams)).(*ExactInputSingleParams)
}

func TestNewRouter_ZeroAddress(t *testing.T) {
	if _, err := NewRouter(common.Address{}); err == nil {
		t.Fatal("expected error for zero router address")
	}
}

func TestRouter_EncodeExactInputSingle(t *testing.T) {
	r, err := NewRouter(routerAddr)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	if r.Address() != routerAddr {
		t.Errorf("Address() = %s", r.Address().Hex())
	}

	data, err := r.EncodeSwap(testCall(false))
	if err != nil {
		t.Fatalf("EncodeSwap: %v", err)
	}

	p := decodeExactInput(t, r, data)
	if p.TokenIn != weth || p.TokenOut != usdc {
		t.Errorf("tokens = %s -> %s", p.TokenIn.Hex(), p.TokenOut.Hex())
	}
	if p.Fee.Uint64() != 3000 {
		t.Errorf("fee = %s, want 3000", p.Fee)
	}
	if p.Recipient != recipient {
		t.Errorf("recipient = %s, want signer", p.Recipient.Hex())
	}
	if p.AmountOutMinimum.Cmp(big.NewInt(34_000_000)) != 0 {
		t.Errorf("amountOutMinimum = %s", p.AmountOutMinimum)
	}
	if p.SqrtPriceLimitX96.Sign() != 0 {
		t.Errorf("price limit = %s, want 0", p.SqrtPriceLimitX96)
	}
	if p.Deadline.Int64() != 1_700_000_000 {
		t.Errorf("deadline = %s", p.Deadline)
	}
}

func TestRouter_EncodeUnwrapsNativeOutput(t *testing.T) {
	r, err := NewRouter(routerAddr)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	call := testCall(true)
	call.TokenIn, call.TokenOut = usdc, weth
	data, err := r.EncodeSwap(call)
	if err != nil {
		t.Fatalf("EncodeSwap: %v", err)
	}

	method, err := r.abi.MethodById(data[:4])
	if err != nil || method.Name != "multicall" {
		t.Fatalf("expected multicall, got %v (%v)", method, err)
	}
	out, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack multicall: %v", err)
	}
	calls := out[0].([][]byte)
	if len(calls) != 2 {
		t.Fatalf("multicall has %d calls, want 2", len(calls))
	}

	swap := decodeExactInput(t, r, calls[0])
	if swap.Recipient != routerAddr {
		t.Errorf("swap recipient = %s, want router", swap.Recipient.Hex())
	}

	unwrap := r.abi.Methods["unwrapWETH9"]
	if !bytes.Equal(calls[1][:4], unwrap.ID) {
		t.Fatal("second call is not unwrapWETH9")
	}
	args, err := unwrap.Inputs.Unpack(calls[1][4:])
	if err != nil {
		t.Fatalf("unpack unwrap: %v", err)
	}
	if args[0].(*big.Int).Cmp(call.AmountOutMinimum) != 0 {
		t.Errorf("unwrap minimum = %s", args[0])
	}
	if args[1].(common.Address) != recipient {
		t.Errorf("unwrap recipient = %s", args[1].(common.Address).Hex())
	}
}

func TestRouter_RejectsIncompleteCall(t *testing.T) {
	r, _ := NewRouter(routerAddr)
	call := testCall(false)
	call.AmountOutMinimum = nil
	if _, err := r.EncodeSwap(call); err == nil {
		t.Fatal("expected error for missing minimum output")
	}
}
