package app

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const (
	usdcHex = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	daiHex  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	wethHex = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

var (
	usdc       = domain.MustToken(usdcHex)
	dai        = domain.MustToken(daiHex)
	wethAddr   = common.HexToAddress(wethHex)
	routerAddr = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
)

// mockLogger implements logger.LoggerInterface for testing.
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

// mockChain records every RPC the pipeline makes.
type mockChain struct {
	mu sync.Mutex

	native    *big.Int
	token     *big.Int
	allowance *big.Int
	readErr   error

	gasEstimate uint64
	gasPrice    *big.Int
	estimateErr error

	sendErr        error
	receiptStatus  uint64
	receiptMissing bool

	calls   map[string]int
	lastMsg ethereum.CallMsg
	sent    []*types.Transaction
}

func newMockChain() *mockChain {
	return &mockChain{
		native:        ether("10"),
		token:         big.NewInt(1_000_000_000_000), // 1M USDC
		allowance:     big.NewInt(1_000_000_000_000),
		gasEstimate:   150_000,
		gasPrice:      big.NewInt(20_000_000_000),
		receiptStatus: types.ReceiptStatusSuccessful,
		calls:         make(map[string]int),
	}
}

func (m *mockChain) hit(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *mockChain) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockChain) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockChain) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	m.hit("native_balance")
	return m.native, m.readErr
}

func (m *mockChain) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	m.hit("token_balance")
	return m.token, m.readErr
}

func (m *mockChain) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	m.hit("allowance")
	return m.allowance, m.readErr
}

func (m *mockChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.hit("estimate_gas")
	m.mu.Lock()
	m.lastMsg = msg
	m.mu.Unlock()
	return m.gasEstimate, m.estimateErr
}

func (m *mockChain) GasPrice(ctx context.Context) (*big.Int, error) {
	m.hit("gas_price")
	return m.gasPrice, nil
}

func (m *mockChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	m.hit("send")
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	m.sent = append(m.sent, tx)
	m.mu.Unlock()
	return nil
}

func (m *mockChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	m.hit("receipt")
	if m.receiptMissing {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{
		Status:            m.receiptStatus,
		TxHash:            hash,
		BlockNumber:       big.NewInt(19_000_000),
		GasUsed:           140_000,
		EffectiveGasPrice: m.gasPrice,
	}, nil
}

// testSigner signs with a throwaway key.
type testSigner struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testSigner{key: key, chainID: big.NewInt(1)}
}

func (s *testSigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }
func (s *testSigner) ChainID() *big.Int       { return s.chainID }

func (s *testSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
}

type mockNonces struct {
	mu       sync.Mutex
	next     uint64
	released []uint64
}

func (n *mockNonces) Next(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := n.next
	n.next++
	return v, nil
}

func (n *mockNonces) Release(nonce uint64) {
	n.mu.Lock()
	n.released = append(n.released, nonce)
	n.mu.Unlock()
}

type mockRouter struct {
	mu    sync.Mutex
	calls []domain.RouterCall
}

func (r *mockRouter) Address() common.Address { return routerAddr }

func (r *mockRouter) EncodeSwap(call domain.RouterCall) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return append([]byte{0x41, 0x4b, 0xf3, 0x89}, call.AmountIn.Bytes()...), nil
}

func (r *mockRouter) last() domain.RouterCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// mockPrice quotes a fixed output. onQuote runs inside Quote.
type mockPrice struct {
	mu      sync.Mutex
	out     *big.Int
	err     error
	calls   int
	onQuote func()
}

func (p *mockPrice) Quote(ctx context.Context, in, out domain.AssetRef, amountIn *big.Int) (*domain.PriceQuote, error) {
	p.mu.Lock()
	p.calls++
	hook := p.onQuote
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.PriceQuote{AmountOut: new(big.Int).Set(p.out), FeeTier: 3000, Source: "mock"}, nil
}

func (p *mockPrice) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// staticDecimals knows USDC and defaults to 18.
type staticDecimals struct{}

func (staticDecimals) Decimals(ctx context.Context, ref domain.AssetRef) (uint8, error) {
	if ref.Equal(usdc) {
		return 6, nil
	}
	return 18, nil
}

type captureSink struct {
	mu      sync.Mutex
	results []domain.ExecutionResult
}

func (c *captureSink) Publish(ctx context.Context, res domain.ExecutionResult) {
	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
}

type panicSink struct{}

func (panicSink) Publish(context.Context, domain.ExecutionResult) { panic("sink exploded") }

func ether(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

func defaultLimits() domain.RiskLimits {
	return domain.RiskLimits{
		MaxSlippagePercent:        5,
		MaxTransactionValueNative: decimal.RequireFromString("1"),
		MaxGasPriceWei:            big.NewInt(100_000_000_000),
		DeadlineMinutes:           20,
		RealExecutionEnabled:      true,
	}
}

// fixture is a fully wired pipeline over mocks.
type fixture struct {
	chain    *mockChain
	price    *mockPrice
	router   *mockRouter
	nonces   *mockNonces
	signer   *testSigner
	governor *RiskGovernor
	stats    *StatisticsRecorder
	svc      *Service
}

func newFixture(t *testing.T, limits domain.RiskLimits) *fixture {
	t.Helper()
	log := &mockLogger{}

	f := &fixture{
		chain:  newMockChain(),
		price:  &mockPrice{out: big.NewInt(35_000_000)}, // 35 USDC
		router: &mockRouter{},
		nonces: &mockNonces{next: 7},
		signer: newTestSigner(t),
		stats:  NewStatisticsRecorder(),
	}
	f.governor = NewRiskGovernor(limits, log)

	svc, err := NewService(Deps{
		Validator: NewValidator(staticDecimals{}, wethAddr),
		Governor:  f.governor,
		Verifier:  NewBalanceAllowanceVerifier(f.chain),
		Quotes:    NewSwapQuoteCalculator(f.price),
		Builder:   NewTransactionBuilder(f.router, wethAddr, limits.DeadlineMinutes),
		Simulator: NewSimulator(f.chain, f.governor, DefaultGasMarginPercent),
		Executor: NewExecutor(f.chain, f.signer, f.nonces, ExecutorConfig{
			Enabled:             limits.RealExecutionEnabled,
			ConfirmationTimeout: 50 * time.Millisecond,
			PollInterval:        time.Millisecond,
		}, log),
		Stats:  f.stats,
		Signer: f.signer,
		Router: routerAddr,
	}, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}
