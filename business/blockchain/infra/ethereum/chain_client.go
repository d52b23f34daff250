package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/cache"
	"github.com/fd1az/swap-sentinel/internal/circuitbreaker"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

type chainClientMetrics struct {
	calls   metric.Int64Counter
	errors  metric.Int64Counter
	latency metric.Float64Histogram
}

// ChainClient is the JSON-RPC adapter for wallet reads, simulation,
// broadcast and block inspection.
type ChainClient struct {
	client *ethclient.Client
	gas    *GasOracle
	erc20  abi.ABI
	signer types.Signer

	decimals *cache.Cache[common.Address, uint8]
	readCB   *circuitbreaker.CircuitBreaker[*big.Int]
	callCB   *circuitbreaker.CircuitBreaker[[]byte]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *chainClientMetrics
}

// NewChainClient wraps an already dialled client. chainID selects the
// signer used to recover transaction senders.
func NewChainClient(client *ethclient.Client, chainID *big.Int, gas *GasOracle, log logger.LoggerInterface) (*ChainClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	c := &ChainClient{
		client:   client,
		gas:      gas,
		erc20:    parsed,
		signer:   types.LatestSignerForChainID(chainID),
		decimals: cache.New[common.Address, uint8](time.Hour),
		readCB:   circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("eth-read")),
		callCB:   circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("eth-call")),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *ChainClient) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &chainClientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"eth_rpc_calls_total",
		metric.WithDescription("JSON-RPC calls by method"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"eth_rpc_errors_total",
		metric.WithDescription("Failed JSON-RPC calls by method"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"eth_rpc_latency_ms",
		metric.WithDescription("JSON-RPC latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// observe starts a span for an RPC method. The returned func ends it.
func (c *ChainClient) observe(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "eth."+method, trace.WithAttributes(attrs...))
	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		m := metric.WithAttributes(attribute.String("method", method))
		c.metrics.calls.Add(ctx, 1, m)
		c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), m)
		if err != nil {
			c.metrics.errors.Add(ctx, 1, m)
			span.RecordError(err)
			span.SetStatus(codes.Error, method+" failed")
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

func rpcErr(err error, what string) error {
	return apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext(what))
}

// ChainID asks the node which chain it serves.
func (c *ChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, done := c.observe(ctx, "chain_id")
	id, err := c.client.ChainID(ctx)
	done(err)
	if err != nil {
		return nil, rpcErr(err, "chain id")
	}
	return id, nil
}

// NativeBalance returns the latest native balance in wei.
func (c *ChainClient) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	ctx, done := c.observe(ctx, "get_balance", attribute.String("owner", owner.Hex()))
	bal, err := c.readCB.Execute(func() (*big.Int, error) {
		return c.client.BalanceAt(ctx, owner, nil)
	})
	done(err)
	if err != nil {
		return nil, rpcErr(err, "balance of "+owner.Hex())
	}
	return bal, nil
}

// TokenBalance calls ERC20 balanceOf.
func (c *ChainClient) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "balanceOf", owner)
}

// Allowance calls ERC20 allowance.
func (c *ChainClient) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", owner, spender)
}

// TokenDecimals calls ERC20 decimals once per token.
func (c *ChainClient) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if d, ok := c.decimals.Get(ctx, token); ok {
		return d, nil
	}

	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("decimals of %s returned %T", token.Hex(), out[0])))
	}

	c.decimals.Set(ctx, token, d, 0)
	return d, nil
}

func (c *ChainClient) callUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, token, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext(fmt.Sprintf("%s on %s returned %T", method, token.Hex(), out[0])))
	}
	return v, nil
}

func (c *ChainClient) call(ctx context.Context, contract common.Address, method string, args ...any) ([]any, error) {
	data, err := c.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	ctx, done := c.observe(ctx, "call",
		attribute.String("contract", contract.Hex()),
		attribute.String("function", method))

	raw, err := c.callCB.Execute(func() ([]byte, error) {
		return c.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	})
	done(err)
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s on %s", method, contract.Hex())))
	}

	out, err := c.erc20.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("decode %s from %s", method, contract.Hex())))
	}
	return out, nil
}

// EstimateGas runs eth_estimateGas. A revert comes back as an error; it is
// not counted against the circuit breaker.
func (c *ChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, done := c.observe(ctx, "estimate_gas")
	gas, err := c.client.EstimateGas(ctx, msg)
	done(err)
	return gas, err
}

// GasPrice returns the cached legacy gas price in wei.
func (c *ChainClient) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.gas.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(price.Wei), nil
}

// PendingNonceAt includes transactions still in the mempool.
func (c *ChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	ctx, done := c.observe(ctx, "pending_nonce", attribute.String("account", account.Hex()))
	n, err := c.client.PendingNonceAt(ctx, account)
	done(err)
	if err != nil {
		return 0, rpcErr(err, "pending nonce")
	}
	return n, nil
}

// SendTransaction broadcasts a signed transaction. It is never retried
// here; the caller owns the nonce.
func (c *ChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, done := c.observe(ctx, "send_raw_transaction", attribute.String("tx", tx.Hash().Hex()))
	err := c.client.SendTransaction(ctx, tx)
	done(err)
	return err
}

// TransactionReceipt returns ethereum.NotFound while the tx is pending.
func (c *ChainClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, done := c.observe(ctx, "get_receipt", attribute.String("tx", hash.Hex()))
	r, err := c.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		done(nil)
		return nil, err
	}
	done(err)
	return r, err
}

// BlockTransactions fetches a full block and recovers each sender.
func (c *ChainClient) BlockTransactions(ctx context.Context, number uint64) ([]domain.Transaction, error) {
	ctx, done := c.observe(ctx, "get_block", attribute.Int64("block_number", int64(number)))
	block, err := c.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	done(err)
	if err != nil {
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("block %d", number)))
	}

	txs, skipped := toTransactions(block, c.signer)
	if skipped > 0 {
		c.logger.Warn(ctx, "skipped transactions with unrecoverable sender", "block", number, "count", skipped)
	}
	return txs, nil
}

// toTransactions converts a block's transactions, dropping those whose
// sender cannot be recovered.
func toTransactions(block *types.Block, signer types.Signer) ([]domain.Transaction, int) {
	out := make([]domain.Transaction, 0, len(block.Transactions()))
	skipped := 0
	for _, tx := range block.Transactions() {
		from, err := types.Sender(signer, tx)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, domain.Transaction{
			Hash:        tx.Hash(),
			From:        from,
			To:          tx.To(),
			Value:       tx.Value(),
			Data:        tx.Data(),
			BlockNumber: block.NumberU64(),
		})
	}
	return out, skipped
}

// Close releases the decimals cache. The underlying client is owned by
// the caller.
func (c *ChainClient) Close() error {
	c.decimals.Close()
	return nil
}
