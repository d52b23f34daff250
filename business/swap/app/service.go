package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const (
	tracerName = "swap"
	meterName  = "swap"
)

type serviceMetrics struct {
	requests      metric.Int64Counter
	stageLatency  metric.Float64Histogram
	governorState metric.Int64Gauge
}

// Deps are the pipeline stages. Signer is nil and ConfigErr set when no
// usable key is configured; the service then rejects every request.
type Deps struct {
	Validator *Validator
	Governor  *RiskGovernor
	Verifier  *BalanceAllowanceVerifier
	Quotes    *SwapQuoteCalculator
	Builder   *TransactionBuilder
	Simulator *Simulator
	Executor  *Executor
	Stats     *StatisticsRecorder
	Signer    Signer
	Router    common.Address
	ConfigErr error
}

// Service runs swap requests through the safety pipeline. It is safe for
// concurrent use.
type Service struct {
	deps Deps

	sinksMu sync.RWMutex
	sinks   []ResultSink

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *serviceMetrics
}

func NewService(deps Deps, log logger.LoggerInterface) (*Service, error) {
	if deps.Signer == nil && deps.ConfigErr == nil {
		deps.ConfigErr = apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no signer configured"))
	}

	s := &Service{
		deps:   deps,
		logger: log,
		tracer: otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	deps.Governor.OnStateChange(func(state domain.GovernorState, _ string) {
		s.metrics.governorState.Record(context.Background(), int64(state))
	})

	return s, nil
}

func (s *Service) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.requests, err = meter.Int64Counter(
		"swap_requests_total",
		metric.WithDescription("Swap requests by outcome"),
	)
	if err != nil {
		return err
	}

	s.metrics.stageLatency, err = meter.Float64Histogram(
		"swap_stage_latency_ms",
		metric.WithDescription("Pipeline stage latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.governorState, err = meter.Int64Gauge(
		"swap_governor_state",
		metric.WithDescription("0=active, 1=emergency stopped"),
	)
	return err
}

// AddSink registers a consumer of results.
func (s *Service) AddSink(sink ResultSink) {
	s.sinksMu.Lock()
	s.sinks = append(s.sinks, sink)
	s.sinksMu.Unlock()
}

func (s *Service) Governor() *RiskGovernor { return s.deps.Governor }

func (s *Service) Stats() domain.Statistics { return s.deps.Stats.Snapshot() }

// SignerAddress is the zero address when no key is configured.
func (s *Service) SignerAddress() common.Address {
	if s.deps.Signer == nil {
		return common.Address{}
	}
	return s.deps.Signer.Address()
}

// Configured reports whether requests can be processed at all.
func (s *Service) Configured() error { return s.deps.ConfigErr }

// ExecuteParams parses untyped input and executes it. Parse failures still
// count as a request and produce a validation result.
func (s *Service) ExecuteParams(ctx context.Context, p domain.SwapParams) domain.ExecutionResult {
	req, err := p.Parse()
	if err != nil {
		req = domain.SwapRequest{
			ID:              uuid.New().String(),
			AmountIn:        p.AmountIn,
			SlippagePercent: p.SlippagePercent,
			DryRun:          p.DryRun,
			Reason:          p.Reason,
			CreatedAt:       time.Now(),
		}
		return s.execute(ctx, req, func(context.Context) domain.ExecutionResult {
			return fail(domain.StageValidation, err)
		})
	}
	return s.Execute(ctx, req)
}

// Execute runs req through every stage and always returns a result; it
// never returns a Go error or panics.
func (s *Service) Execute(ctx context.Context, req domain.SwapRequest) domain.ExecutionResult {
	return s.execute(ctx, req, func(ctx context.Context) domain.ExecutionResult {
		return s.run(ctx, req)
	})
}

func (s *Service) execute(ctx context.Context, req domain.SwapRequest, body func(context.Context) domain.ExecutionResult) (res domain.ExecutionResult) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "swap.execute",
		trace.WithAttributes(
			attribute.String("request_id", req.ID),
			attribute.String("asset_in", req.AssetIn.String()),
			attribute.String("asset_out", req.AssetOut.String()),
			attribute.String("amount_in", req.AmountIn),
			attribute.Bool("dry_run", req.DryRun),
		),
	)
	defer span.End()

	s.deps.Stats.RecordRequested()

	defer func() {
		if r := recover(); r != nil {
			res = fail(domain.StageCompleted, apperror.New(apperror.CodeInternalError,
				apperror.WithContext(fmt.Sprintf("pipeline panic: %v", r))))
		}
		res.RequestID = req.ID
		res.Request = req
		res.DryRun = req.DryRun
		res.Duration = time.Since(start)
		res.CompletedAt = time.Now()

		s.record(ctx, span, res)
		s.publish(ctx, res)
	}()

	return body(ctx)
}

func (s *Service) run(ctx context.Context, req domain.SwapRequest) domain.ExecutionResult {
	if s.deps.ConfigErr != nil {
		return fail(domain.StageConfiguration, s.deps.ConfigErr)
	}

	var (
		vs   domain.ValidatedSwap
		res  domain.ExecutionResult
		err  error
		from = s.deps.Signer.Address()
	)

	if err = s.stage(ctx, domain.StageValidation, func(context.Context) error {
		vs, err = s.deps.Validator.Validate(req)
		return err
	}); err != nil {
		return fail(domain.StageValidation, err)
	}

	if err = s.deps.Governor.CheckPreIO(vs); err != nil {
		return fail(domain.StageRiskGate, err)
	}

	if err = s.stage(ctx, domain.StageValidation, func(ctx context.Context) error {
		vs, err = s.deps.Validator.Normalize(ctx, vs)
		return err
	}); err != nil {
		return fail(domain.StageValidation, err)
	}

	if err = s.stage(ctx, domain.StageVerification, func(ctx context.Context) error {
		_, err := s.deps.Verifier.Verify(ctx, from, s.deps.Router, req.AssetIn, vs.AmountInRaw)
		return err
	}); err != nil {
		return fail(domain.StageVerification, err)
	}

	var quote domain.SwapQuote
	if err = s.stage(ctx, domain.StageQuote, func(ctx context.Context) error {
		quote, err = s.deps.Quotes.Quote(ctx, vs)
		return err
	}); err != nil {
		return fail(domain.StageQuote, err)
	}
	res.Quote = &quote

	tx, err := s.deps.Builder.Build(from, vs, quote)
	if err != nil {
		return withErr(res, domain.StageBuild, err)
	}

	var sim domain.Simulation
	if err = s.stage(ctx, domain.StageSimulation, func(ctx context.Context) error {
		tx, sim, err = s.deps.Simulator.Simulate(ctx, from, tx)
		return err
	}); err != nil {
		return withErr(res, domain.StageSimulation, err)
	}
	res.Simulation = &sim

	if req.DryRun {
		res.Success = true
		res.Stage = domain.StageCompleted
		return res
	}

	permit, err := s.deps.Governor.CheckPreBroadcast(vs)
	if err != nil {
		return withErr(res, domain.StagePreBroadcastGate, err)
	}

	var out ExecutionOutcome
	err = s.stage(ctx, domain.StageExecution, func(ctx context.Context) error {
		out, err = s.deps.Executor.Execute(ctx, permit, tx, sim.GasPriceWei)
		return err
	})
	res.Broadcast = out.Broadcast
	if out.TxHash != (common.Hash{}) {
		h := out.TxHash
		res.TxHash = &h
	}
	res.Receipt = out.Receipt
	if err != nil {
		return withErr(res, domain.StageExecution, err)
	}

	res.Success = true
	res.Stage = domain.StageCompleted
	return res
}

// stage wraps fn in a span and records its latency.
func (s *Service) stage(ctx context.Context, st domain.Stage, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "swap."+string(st))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	s.metrics.stageLatency.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("stage", string(st))))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *Service) record(ctx context.Context, span trace.Span, res domain.ExecutionResult) {
	var (
		outcome string
		err     error
	)
	switch {
	case res.Success && res.DryRun:
		outcome = "dry_run"
		err = s.deps.Stats.RecordDryRun()
	case res.Success:
		outcome = "executed"
		err = s.deps.Stats.RecordExecuted(res.Request.AssetIn, res.Quote.AmountIn, *res.Receipt)
	default:
		outcome = "failed"
		err = s.deps.Stats.RecordFailed(res.Broadcast)
	}
	if err != nil {
		s.logger.Error(ctx, "statistics rejected outcome", "request_id", res.RequestID, "error", err)
	}

	s.metrics.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", string(res.Stage)),
	))
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", string(res.Stage)),
		attribute.Bool("broadcast", res.Broadcast),
	)

	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Category()))
		s.logger.Warn(ctx, "swap rejected",
			"request_id", res.RequestID,
			"stage", res.Stage,
			"category", res.Category(),
			"code", apperror.GetCode(res.Err),
			"broadcast", res.Broadcast,
			"error", res.Err,
		)
		return
	}

	span.SetStatus(codes.Ok, outcome)
	args := []any{
		"request_id", res.RequestID,
		"asset_in", res.Request.AssetIn.String(),
		"asset_out", res.Request.AssetOut.String(),
		"amount_in", res.Request.AmountIn,
		"estimated_out", res.Quote.EstimatedOutput.String(),
		"min_out", res.Quote.MinOutputAfterSlippage.String(),
		"duration", res.Duration,
	}
	if res.TxHash != nil {
		args = append(args, "tx", res.TxHash.Hex())
	}
	s.logger.Info(ctx, "swap "+outcome, args...)
}

// publish hands res to every sink. Sink failures never reach the caller.
func (s *Service) publish(ctx context.Context, res domain.ExecutionResult) {
	s.sinksMu.RLock()
	sinks := append([]ResultSink(nil), s.sinks...)
	s.sinksMu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, sink := range sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error(ctx, "result sink panicked", "panic", r)
				}
			}()
			sink.Publish(ctx, res)
		}()
	}
}

func fail(stage domain.Stage, err error) domain.ExecutionResult {
	return domain.ExecutionResult{Stage: stage, Err: err}
}

func withErr(res domain.ExecutionResult, stage domain.Stage, err error) domain.ExecutionResult {
	res.Stage = stage
	res.Err = err
	res.Success = false
	return res
}
