package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/business/pricing/domain"
	swapdomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const (
	tracerName = "pricing"
	meterName  = "pricing"
)

// Reference check outcomes, used as a metric attribute.
const (
	checkPassed    = "passed"
	checkRejected  = "rejected"
	checkSkipped   = "skipped"
	checkNoRefData = "unavailable"
)

// Config controls the reference cross-check.
type Config struct {
	ReferenceCheck  bool
	MaxDeviationBps decimal.Decimal
	// WrappedNative replaces the native coin when asking the oracle.
	WrappedNative common.Address
}

type serviceMetrics struct {
	checks    metric.Int64Counter
	deviation metric.Float64Histogram
}

// PricingService quotes swaps through the on-chain oracle and, when
// enabled, rejects quotes that stray too far from a reference price.
type PricingService struct {
	cfg       Config
	oracle    PriceOracle
	reference ReferencePriceSource
	assets    AssetInfo
	symbols   SymbolLookup

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *serviceMetrics
}

// NewPricingService wires the service. reference and symbols may be nil,
// which disables the cross-check.
func NewPricingService(cfg Config, oracle PriceOracle, reference ReferencePriceSource, assets AssetInfo, symbols SymbolLookup, log logger.LoggerInterface) (*PricingService, error) {
	s := &PricingService{
		cfg:       cfg,
		oracle:    oracle,
		reference: reference,
		assets:    assets,
		symbols:   symbols,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *PricingService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.checks, err = meter.Int64Counter(
		"pricing_reference_checks_total",
		metric.WithDescription("Reference price cross-checks by result"),
	)
	if err != nil {
		return err
	}

	s.metrics.deviation, err = meter.Float64Histogram(
		"pricing_deviation_bps",
		metric.WithDescription("Absolute deviation of quoted price from reference in basis points"),
		metric.WithUnit("{bp}"),
	)
	return err
}

// Quote implements the swap pipeline's price source.
func (s *PricingService) Quote(ctx context.Context, in, out swapdomain.AssetRef, amountIn *big.Int) (*swapdomain.PriceQuote, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.quote",
		trace.WithAttributes(
			attribute.String("asset_in", in.String()),
			attribute.String("asset_out", out.String()),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	q, err := s.oracle.Quote(ctx, s.oracleToken(in), s.oracleToken(out), amountIn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle quote failed")
		return nil, err
	}

	if err := s.checkReference(ctx, in, out, q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reference check failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("amount_out", q.AmountOut.String()),
		attribute.Int("fee_tier", int(q.FeeTier)),
	)
	span.SetStatus(codes.Ok, "")

	return &swapdomain.PriceQuote{
		AmountOut: new(big.Int).Set(q.AmountOut),
		FeeTier:   q.FeeTier,
		Source:    q.Source,
	}, nil
}

func (s *PricingService) oracleToken(ref swapdomain.AssetRef) common.Address {
	if ref.IsNative() {
		return s.cfg.WrappedNative
	}
	return ref.Address()
}

// checkReference compares the quote's execution price with the reference
// mid. Pairs without a configured symbol, or without fresh reference
// data, are let through.
func (s *PricingService) checkReference(ctx context.Context, in, out swapdomain.AssetRef, q *domain.Quote) error {
	if !s.cfg.ReferenceCheck || s.reference == nil || s.symbols == nil {
		return nil
	}

	symIn, okIn := s.assets.Symbol(in.Address())
	symOut, okOut := s.assets.Symbol(out.Address())
	if !okIn || !okOut {
		s.recordCheck(ctx, checkSkipped)
		return nil
	}
	symbol, inverted, ok := s.symbols(symIn, symOut)
	if !ok {
		s.recordCheck(ctx, checkSkipped)
		return nil
	}

	ref, err := s.reference.ReferencePrice(ctx, symbol)
	if err != nil {
		s.recordCheck(ctx, checkNoRefData)
		s.logger.Warn(ctx, "reference price unavailable, skipping deviation check",
			"symbol", symbol, "error", err)
		return nil
	}

	decIn, err := s.assets.Decimals(ctx, in.Address())
	if err != nil {
		return err
	}
	decOut, err := s.assets.Decimals(ctx, out.Address())
	if err != nil {
		return err
	}

	dev := domain.MeasureDeviation(ref.MidFor(inverted), q.ExecutionPrice(decIn, decOut))
	s.metrics.deviation.Record(ctx, dev.AbsFloat(), metric.WithAttributes(attribute.String("symbol", symbol)))

	if !dev.Within(s.cfg.MaxDeviationBps) {
		s.recordCheck(ctx, checkRejected)
		return apperror.New(apperror.CodePriceDeviation,
			apperror.WithContext(fmt.Sprintf("%s quote %s vs reference %s: %s bps (%s) exceeds %s",
				symbol, dev.Quoted.StringFixed(6), dev.Reference.StringFixed(6),
				dev.Bps.StringFixed(1), dev.Side, s.cfg.MaxDeviationBps)))
	}

	s.recordCheck(ctx, checkPassed)
	return nil
}

func (s *PricingService) recordCheck(ctx context.Context, result string) {
	s.metrics.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
