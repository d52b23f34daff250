// Package uniswap implements the PriceOracle port against the Uniswap V3 QuoterV2.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/swap-sentinel/business/pricing/app"
	"github.com/fd1az/swap-sentinel/business/pricing/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/circuitbreaker"
	"github.com/fd1az/swap-sentinel/internal/config"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
	sourceName = "uniswap-v3"
)

var _ app.PriceOracle = (*Provider)(nil)

// ContractCaller is the subset of ethclient the quoter needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Provider quotes through QuoterV2 on every configured fee tier at once
// and keeps the largest output.
type Provider struct {
	client   ContractCaller
	quoter   common.Address
	feeTiers []uint32

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	quotes  metric.Int64Counter
	latency metric.Float64Histogram
}

func NewProvider(client ContractCaller, cfg config.UniswapConfig, log logger.LoggerInterface) (*Provider, error) {
	meter := otel.Meter(meterName)
	quotes, err1 := meter.Int64Counter("uniswap_quotes_total",
		metric.WithDescription("Quote requests by result: ok, no_pool or invalid"))
	latency, err2 := meter.Float64Histogram("uniswap_quote_latency_ms",
		metric.WithDescription("Wall time to quote every fee tier"),
		metric.WithUnit("ms"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Provider{
		client:   client,
		quoter:   cfg.QuoterAddressHex(),
		feeTiers: feeTiers(cfg.DefaultFeeTier, cfg.FeeTiers),
		logger:   log,
		cb:       circuitbreaker.New[[]byte](breakerConfig()),
		tracer:   otel.Tracer(tracerName),
		quotes:   quotes,
		latency:  latency,
	}, nil
}

// breakerConfig does not count reverts as failures; a missing pool for
// one fee tier says nothing about node health.
func breakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("uniswap-quoter")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || isRevert(err)
	}
	return cfg
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// feeTiers orders the default tier first and drops duplicates and
// non-positive entries. With nothing configured the standard tiers are used.
func feeTiers(def int, configured []int) []uint32 {
	candidates := append([]int{def}, configured...)
	if len(configured) == 0 {
		candidates = append(candidates, int(FeeTierLow), int(FeeTierMedium), int(FeeTierHigh))
	}

	seen := make(map[int]bool, len(candidates))
	out := make([]uint32, 0, len(candidates))
	for _, t := range candidates {
		if t <= 0 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, uint32(t))
	}
	return out
}

// Quote returns the best exact-input quote across fee tiers. On equal
// outputs the earlier tier in the configured order wins.
func (p *Provider) Quote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*domain.Quote, error) {
	ctx, span := p.tracer.Start(ctx, "uniswap.quote", trace.WithAttributes(
		attribute.String("token_in", tokenIn.Hex()),
		attribute.String("token_out", tokenOut.Hex()),
		attribute.String("amount_in", amountIn.String()),
	))
	defer span.End()

	if tokenIn == tokenOut {
		p.count(ctx, "invalid")
		span.SetStatus(codes.Error, "same token")
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("token in and out resolve to the same contract"))
	}

	start := time.Now()
	results := make([]*poolQuote, len(p.feeTiers))
	errs := make([]error, len(p.feeTiers))
	var g errgroup.Group
	for i, tier := range p.feeTiers {
		g.Go(func() error {
			results[i], errs[i] = p.quoteForFeeTier(ctx, tokenIn, tokenOut, amountIn, tier)
			return nil
		})
	}
	g.Wait()
	p.latency.Record(ctx, float64(time.Since(start).Milliseconds()))

	var best *poolQuote
	for i, q := range results {
		if errs[i] != nil {
			span.AddEvent("fee_tier_failed", trace.WithAttributes(
				attribute.Int("fee_tier", int(p.feeTiers[i])),
				attribute.String("error", errs[i].Error())))
			continue
		}
		if best == nil || q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}

	if best == nil || best.AmountOut.Sign() <= 0 {
		p.count(ctx, "no_pool")
		span.SetStatus(codes.Error, "no pool")
		return nil, apperror.New(apperror.CodeUniswapPoolNotFound,
			apperror.WithCause(errors.Join(errs...)),
			apperror.WithContext(fmt.Sprintf("no pool quoted %s -> %s", tokenIn.Hex(), tokenOut.Hex())))
	}
	p.count(ctx, "ok")

	span.SetAttributes(
		attribute.String("amount_out", best.AmountOut.String()),
		attribute.Int("fee_tier", int(best.FeeTier)),
		attribute.Int64("gas_estimate", best.GasEstimate.Int64()),
	)
	p.logger.Debug(ctx, "uniswap quote",
		"amount_in", amountIn.String(),
		"amount_out", best.AmountOut.String(),
		"fee_tier", best.FeeTier)

	return &domain.Quote{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   best.AmountOut,
		FeeTier:     best.FeeTier,
		GasEstimate: best.GasEstimate.Uint64(),
		Source:      sourceName,
		Timestamp:   time.Now(),
	}, nil
}

func (p *Provider) count(ctx context.Context, result string) {
	p.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// quoteForFeeTier calls quoteExactInputSingle for one pool.
func (p *Provider) quoteForFeeTier(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*poolQuote, error) {
	data, err := packQuote(tokenIn, tokenOut, amountIn, feeTier)
	if err != nil {
		return nil, apperror.Internal(apperror.CodeContractCallFailed, "encode quote", err)
	}

	out, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{To: &p.quoter, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("fee tier %d", feeTier)))
	}
	return unpackQuote(feeTier, out)
}
