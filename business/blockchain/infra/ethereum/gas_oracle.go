package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/cache"
	"github.com/fd1az/swap-sentinel/internal/circuitbreaker"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const gasKey = "suggested"

// GasPriceSuggester is the subset of ethclient.Client the oracle uses.
type GasPriceSuggester interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type GasOracleConfig struct {
	CacheTTL time.Duration
}

// DefaultGasOracleConfig caches for roughly one block.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{CacheTTL: 12 * time.Second}
}

// GasOracle serves the node's suggested gas price. Answers are reused for
// CacheTTL and concurrent misses share a single RPC. The price is reported
// as observed; enforcing a ceiling is the governor's job.
type GasOracle struct {
	cfg    GasOracleConfig
	client GasPriceSuggester
	logger logger.LoggerInterface

	prices   *cache.Cache[string, *domain.GasPrice]
	inflight singleflight.Group
	cb       *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	lookups metric.Int64Counter
	gwei    metric.Float64Gauge
}

func NewGasOracle(client GasPriceSuggester, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	meter := otel.Meter(meterName)
	lookups, err1 := meter.Int64Counter("gas_price_lookups_total",
		metric.WithDescription("Gas price lookups by result: cached, fetched, shared or failed"))
	gwei, err2 := meter.Float64Gauge("gas_price_gwei",
		metric.WithDescription("Last suggested gas price"),
		metric.WithUnit("gwei"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &GasOracle{
		cfg:     cfg,
		client:  client,
		logger:  log,
		prices:  cache.New[string, *domain.GasPrice](time.Minute),
		cb:      circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:  otel.Tracer(tracerName),
		lookups: lookups,
		gwei:    gwei,
	}, nil
}

// GetGasPrice returns the suggested legacy gas price.
func (g *GasOracle) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	if p, ok := g.prices.Get(ctx, gasKey); ok {
		g.count(ctx, "cached")
		return p, nil
	}

	ctx, span := g.tracer.Start(ctx, "gas.suggest")
	defer span.End()

	v, err, shared := g.inflight.Do(gasKey, func() (any, error) {
		wei, err := g.cb.Execute(func() (*big.Int, error) {
			return g.client.SuggestGasPrice(ctx)
		})
		if err != nil {
			return nil, err
		}
		p := domain.NewGasPrice(wei)
		g.prices.Set(ctx, gasKey, p, g.cfg.CacheTTL)
		g.gwei.Record(ctx, p.Gwei())
		return p, nil
	})
	if err != nil {
		g.count(ctx, "failed")
		span.RecordError(err)
		g.logger.Warn(ctx, "gas price lookup failed", "error", err)
		return nil, apperror.External(apperror.CodeEthereumRPCError, "eth_gasPrice", err)
	}

	p := v.(*domain.GasPrice)
	if shared {
		g.count(ctx, "shared")
	} else {
		g.count(ctx, "fetched")
	}
	span.SetAttributes(attribute.Float64("gwei", p.Gwei()), attribute.Bool("shared", shared))
	return p, nil
}

func (g *GasOracle) count(ctx context.Context, result string) {
	g.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Close stops the cache janitor.
func (g *GasOracle) Close() error {
	g.prices.Close()
	return nil
}
