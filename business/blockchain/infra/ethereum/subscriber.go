// Package ethereum provides Ethereum blockchain infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/business/blockchain/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/circuitbreaker"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/retry"
)

const (
	tracerName = "github.com/fd1az/swap-sentinel/business/blockchain/infra/ethereum"
	meterName  = "github.com/fd1az/swap-sentinel/business/blockchain/infra/ethereum"
)

var errSubscriberClosed = errors.New("subscriber is closed")

// headSource labels where a block number came from.
type headSource string

const (
	sourceWS       headSource = "ws"
	sourceHTTP     headSource = "http"
	sourceBackfill headSource = "backfill"
)

// SubscriberConfig configures the head stream. The websocket is preferred;
// when it cannot be restored within Reconnect the subscriber polls over
// HTTP for FallbackWindow and then probes the websocket again. MaxGap
// bounds how many skipped numbers are backfilled after a jump.
type SubscriberConfig struct {
	WSURL          string
	HTTPURL        string
	PollInterval   time.Duration
	FallbackWindow time.Duration
	Reconnect      retry.Policy
	BufferSize     int
	MaxGap         uint64
}

func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   12 * time.Second,
		FallbackWindow: 5 * time.Minute,
		Reconnect: retry.Policy{
			MaxAttempts:     5,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
			MaxElapsed:      2 * time.Minute,
		},
		BufferSize: 64,
		MaxGap:     32,
	}
}

type subscriberMetrics struct {
	heads     metric.Int64Counter
	errors    metric.Int64Counter
	fallbacks metric.Int64Counter
	state     metric.Int64Gauge
	lag       metric.Float64Histogram
}

func newSubscriberMetrics() (*subscriberMetrics, error) {
	meter := otel.Meter(meterName)
	m := &subscriberMetrics{}
	var errs [5]error
	m.heads, errs[0] = meter.Int64Counter("eth_heads_total",
		metric.WithDescription("Block numbers emitted to consumers, by source"),
		metric.WithUnit("{block}"))
	m.errors, errs[1] = meter.Int64Counter("eth_head_errors_total",
		metric.WithDescription("Head stream failures, by source"),
		metric.WithUnit("{error}"))
	m.fallbacks, errs[2] = meter.Int64Counter("eth_http_fallback_total",
		metric.WithDescription("Times the subscriber switched to HTTP polling"))
	m.state, errs[3] = meter.Int64Gauge("eth_connection_state",
		metric.WithDescription("0 disconnected, 1 connecting, 2 connected, 3 reconnecting"))
	m.lag, errs[4] = meter.Float64Histogram("eth_head_lag_ms",
		metric.WithDescription("Delay between block timestamp and receipt"),
		metric.WithUnit("ms"))
	return m, errors.Join(errs[:]...)
}

// Subscriber streams new block heads to a single consumer.
type Subscriber struct {
	cfg     SubscriberConfig
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *subscriberMetrics

	mu    sync.RWMutex
	ws    *ethclient.Client
	http  *ethclient.Client
	state domain.ConnectionState

	wsCB   *circuitbreaker.CircuitBreaker[*types.Header]
	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	started    atomic.Bool
	polling    atomic.Bool
	last       atomic.Uint64
	reconnects atomic.Int32

	// emitMu orders emits against Close so blocks is never sent on after
	// it is closed.
	emitMu sync.Mutex
	closed atomic.Bool
	blocks chan *domain.Block
	done   chan struct{}

	// runCtx scopes the supervisor; Close cancels it.
	runCtx context.Context
	stop   context.CancelFunc
}

func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	m, err := newSubscriberMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s := &Subscriber{
		cfg:     cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		metrics: m,
		state:   domain.StateDisconnected,
		blocks:  make(chan *domain.Block, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	s.runCtx, s.stop = context.WithCancel(context.Background())
	s.wsCB = circuitbreaker.New[*types.Header](s.breakerConfig("eth-ws"))
	s.httpCB = circuitbreaker.New[*types.Header](s.breakerConfig("eth-http"))
	return s, nil
}

func (s *Subscriber) breakerConfig(name string) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig(name)
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Warn(context.Background(), "ethereum breaker changed state",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	return cfg
}

// Subscribe connects and starts streaming. Calling it again returns the
// same channel. The channel is closed by Close.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	if s.closed.Load() {
		return nil, errSubscriberClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return s.blocks, nil
	}

	ctx, span := s.tracer.Start(ctx, "eth.subscribe")
	defer span.End()

	s.setState(domain.StateConnecting)

	wsErr := s.dial(ctx, sourceWS)
	if wsErr != nil {
		s.logger.Warn(ctx, "websocket unavailable, starting with http polling", "error", wsErr)
		if err := s.dial(ctx, sourceHTTP); err != nil {
			s.started.Store(false)
			s.setState(domain.StateDisconnected)
			span.SetStatus(codes.Error, "no transport")
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(errors.Join(wsErr, err)),
				apperror.WithContext("neither websocket nor http reachable"))
		}
	}

	s.setState(domain.StateConnected)
	go s.supervise(s.runCtx, wsErr == nil)
	return s.blocks, nil
}

// supervise owns the transport for the subscriber's lifetime.
func (s *Subscriber) supervise(ctx context.Context, wsUp bool) {
	for !s.closed.Load() {
		if wsUp {
			err := s.streamWS(ctx)
			if s.closed.Load() {
				return
			}
			s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(sourceWS))))
			s.logger.Warn(ctx, "websocket head stream ended", "error", err)

			s.setState(domain.StateReconnecting)
			s.reconnects.Add(1)
			wsUp = s.redialWS(ctx) == nil
			if wsUp {
				s.setState(domain.StateConnected)
			}
			continue
		}

		if err := s.pollFor(ctx, s.cfg.FallbackWindow); err != nil {
			if !s.closed.Load() {
				s.logger.Error(ctx, "http fallback unavailable", "error", err)
				s.setState(domain.StateDisconnected)
			}
			return
		}
		wsUp = s.cfg.WSURL != "" && s.dial(ctx, sourceWS) == nil
		if wsUp {
			s.logger.Info(ctx, "websocket restored, leaving http polling")
		}
	}
}

func (s *Subscriber) dial(ctx context.Context, src headSource) error {
	url := s.cfg.WSURL
	if src == sourceHTTP {
		url = s.cfg.HTTPURL
	}
	if url == "" {
		return fmt.Errorf("%s url not configured", src)
	}

	ctx, span := s.tracer.Start(ctx, "eth.dial", trace.WithAttributes(attribute.String("transport", string(src))))
	defer span.End()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("dial %s: %w", src, err)
	}

	s.mu.Lock()
	old := s.ws
	if src == sourceHTTP {
		old, s.http = s.http, client
	} else {
		s.ws = client
	}
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (s *Subscriber) redialWS(ctx context.Context) error {
	return retry.Run(ctx, s.cfg.Reconnect, func() error {
		if s.closed.Load() {
			return retry.Permanent(errSubscriberClosed)
		}
		if s.cfg.WSURL == "" {
			return retry.Permanent(errors.New("ws url not configured"))
		}
		return s.dial(ctx, sourceWS)
	}, func(err error, next time.Duration) {
		s.logger.Warn(ctx, "websocket redial failed", "error", err, "retry_in", next)
	})
}

// streamWS forwards heads until the subscription fails or the subscriber
// closes.
func (s *Subscriber) streamWS(ctx context.Context) error {
	s.mu.RLock()
	client := s.ws
	s.mu.RUnlock()
	if client == nil {
		return errors.New("no websocket client")
	}

	heads := make(chan *types.Header, s.cfg.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()
	s.logger.Info(ctx, "streaming heads over websocket")

	for {
		select {
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case h := <-heads:
			if h != nil {
				s.processHeader(ctx, h, sourceWS)
			}
		}
	}
}

// pollFor polls the latest head over HTTP until window elapses. A zero
// window polls until Close.
func (s *Subscriber) pollFor(ctx context.Context, window time.Duration) error {
	s.mu.RLock()
	haveHTTP := s.http != nil
	s.mu.RUnlock()
	if !haveHTTP {
		if err := s.dial(ctx, sourceHTTP); err != nil {
			return err
		}
	}

	s.polling.Store(true)
	defer s.polling.Store(false)
	s.metrics.fallbacks.Add(ctx, 1)
	s.setState(domain.StateConnected)
	s.logger.Info(ctx, "polling heads over http", "interval", s.cfg.PollInterval, "window", window)

	var expire <-chan time.Time
	if window > 0 {
		t := time.NewTimer(window)
		defer t.Stop()
		expire = t.C
	}
	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	for {
		s.pollOnce(ctx)
		select {
		case <-s.done:
			return errSubscriberClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-expire:
			return nil
		case <-tick.C:
		}
	}
}

func (s *Subscriber) pollOnce(ctx context.Context) {
	s.mu.RLock()
	client := s.http
	s.mu.RUnlock()
	if client == nil {
		return
	}

	h, err := s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		s.metrics.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(sourceHTTP))))
		s.logger.Warn(ctx, "http head poll failed", "error", err)
		return
	}
	if h.Number.Uint64() > s.last.Load() {
		s.processHeader(ctx, h, sourceHTTP)
	}
}

// processHeader emits a head once. Numbers skipped since the previous head
// are emitted first, number-only, so transaction scanners miss nothing.
// Repeated or older numbers are ignored.
func (s *Subscriber) processHeader(ctx context.Context, h *types.Header, src headSource) {
	block := toBlock(h)
	s.metrics.lag.Record(ctx, float64(time.Since(block.Timestamp).Milliseconds()),
		metric.WithAttributes(attribute.String("source", string(src))))

	prev := s.last.Load()
	for prev == 0 || block.Number > prev {
		if s.last.CompareAndSwap(prev, block.Number) {
			break
		}
		prev = s.last.Load()
	}
	if prev != 0 && block.Number <= prev {
		return
	}

	for _, n := range gapNumbers(prev, block.Number, s.cfg.MaxGap) {
		s.emit(ctx, &domain.Block{Number: n}, sourceBackfill)
	}
	if s.emit(ctx, block, src) {
		s.logger.Debug(ctx, "head", "number", block.Number, "source", src)
	}
}

func (s *Subscriber) emit(ctx context.Context, b *domain.Block, src headSource) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.blocks <- b:
		s.metrics.heads.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
		return true
	default:
		s.logger.Warn(ctx, "consumer behind, head dropped", "number", b.Number)
		return false
	}
}

// gapNumbers lists the numbers strictly between prev and next, keeping the
// newest limit of them. prev == 0 means no history.
func gapNumbers(prev, next, limit uint64) []uint64 {
	if prev == 0 || limit == 0 || next <= prev+1 {
		return nil
	}
	from := max(prev+1, next-limit)
	out := make([]uint64, 0, next-from)
	for n := from; n < next; n++ {
		out = append(out, n)
	}
	return out
}

func toBlock(h *types.Header) *domain.Block {
	return &domain.Block{
		Number:     h.Number.Uint64(),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Timestamp:  time.Unix(int64(h.Time), 0),
		GasLimit:   h.GasLimit,
		GasUsed:    h.GasUsed,
		BaseFee:    h.BaseFee,
	}
}

// LatestBlock reads the head from the active transport.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "eth.latest_block")
	defer span.End()

	s.mu.RLock()
	ws, http := s.ws, s.http
	s.mu.RUnlock()

	var (
		h   *types.Header
		err error
	)
	if ws != nil && !s.polling.Load() {
		h, err = s.wsCB.Execute(func() (*types.Header, error) { return ws.HeaderByNumber(ctx, nil) })
	}
	if h == nil && http != nil {
		h, err = s.httpCB.Execute(func() (*types.Header, error) { return http.HeaderByNumber(ctx, nil) })
	}

	switch {
	case err != nil:
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeBlockNotFound,
			apperror.WithCause(err), apperror.WithContext("latest"))
	case h == nil:
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("not subscribed"))
	}
	return toBlock(h), nil
}

func (s *Subscriber) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Subscriber) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      s.State(),
		Head:       s.last.Load(),
		Reconnects: int(s.reconnects.Load()),
		ViaHTTP:    s.polling.Load(),
	}
}

// Close stops streaming, closes both transports and the block channel.
// It is idempotent.
func (s *Subscriber) Close() error {
	s.emitMu.Lock()
	if s.closed.Swap(true) {
		s.emitMu.Unlock()
		return nil
	}
	close(s.done)
	close(s.blocks)
	s.emitMu.Unlock()
	s.stop()

	s.mu.Lock()
	for _, c := range []*ethclient.Client{s.ws, s.http} {
		if c != nil {
			c.Close()
		}
	}
	s.ws, s.http = nil, nil
	s.mu.Unlock()

	s.setState(domain.StateDisconnected)
	s.logger.Info(context.Background(), "ethereum subscriber closed")
	return nil
}

func (s *Subscriber) setState(st domain.ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	var v int64
	switch st {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateReconnecting:
		v = 3
	}
	s.metrics.state.Record(context.Background(), v)
}
