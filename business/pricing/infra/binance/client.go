package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
	"github.com/fd1az/swap-sentinel/internal/wsconn"
)

const (
	tracerName = "binance"
	meterName  = "binance"

	// BaseWSURL is the public spot stream host.
	BaseWSURL = "wss://stream.binance.com:9443"
)

// ClientConfig configures the book ticker stream.
type ClientConfig struct {
	BaseURL      string
	Symbols      []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client reads <symbol>@bookTicker frames from one combined-stream
// connection. The symbol set is fixed at Connect.
type Client struct {
	cfg    ClientConfig
	logger logger.LoggerInterface
	tracer trace.Tracer

	frames  metric.Int64Counter
	dropped metric.Int64Counter

	mu      sync.RWMutex
	conn    *wsconn.Client
	handler func(*BookTickerEvent)

	seqMu   sync.Mutex
	lastSeq map[string]int64
}

func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	meter := otel.Meter(meterName)
	frames, err1 := meter.Int64Counter("binance_book_tickers_total",
		metric.WithDescription("Book ticker frames delivered"))
	dropped, err2 := meter.Int64Counter("binance_frames_dropped_total",
		metric.WithDescription("Frames dropped by reason: malformed or out_of_order"))
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &Client{
		cfg:     cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		frames:  frames,
		dropped: dropped,
		lastSeq: make(map[string]int64),
	}, nil
}

// OnBookTicker sets the callback for accepted frames. Set it before Connect.
func (c *Client) OnBookTicker(fn func(*BookTickerEvent)) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// Connect dials the combined stream with retries. wsconn keeps the
// connection alive afterwards.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "binance.connect",
		trace.WithAttributes(attribute.StringSlice("symbols", c.cfg.Symbols)))
	defer span.End()

	streamURL, err := c.buildStreamURL()
	if err != nil {
		return err
	}

	wsCfg := wsconn.DefaultConfig(streamURL, "binance")
	if c.cfg.ReadTimeout > 0 {
		wsCfg.ReadTimeout = c.cfg.ReadTimeout
	}
	if c.cfg.WriteTimeout > 0 {
		wsCfg.WriteTimeout = c.cfg.WriteTimeout
	}
	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.Internal(apperror.CodeBinanceConnectionFailed, "stream config", err)
	}
	conn.OnMessage(c.handleFrame)
	conn.OnStateChange(func(state wsconn.State, err error) {
		if state == wsconn.StateConnected {
			// Update ids restart with a new connection.
			c.seqMu.Lock()
			clear(c.lastSeq)
			c.seqMu.Unlock()
		}
		if err != nil {
			c.logger.Warn(context.Background(), "binance stream state", "state", state, "error", err)
		}
	})

	if err := conn.ConnectWithRetry(ctx); err != nil {
		span.RecordError(err)
		conn.Close()
		return apperror.External(apperror.CodeBinanceConnectionFailed, streamURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info(ctx, "binance stream connected", "symbols", c.cfg.Symbols)
	return nil
}

// buildStreamURL returns <base>/stream?streams=a@bookTicker/b@bookTicker.
func (c *Client) buildStreamURL() (string, error) {
	if len(c.cfg.Symbols) == 0 {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no binance symbols configured"))
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = BaseWSURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("binance websocket url"))
	}

	names := make([]string, len(c.cfg.Symbols))
	for i, sym := range c.cfg.Symbols {
		names[i] = bookTickerStream(sym)
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(names, "/")
	return u.String(), nil
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var env streamEnvelope
	if err := json.Unmarshal(data, &env); err != nil || !strings.HasSuffix(env.Stream, "@bookTicker") {
		c.drop(ctx, "malformed")
		c.logger.Debug(ctx, "unexpected binance frame", "data", string(data[:min(len(data), 200)]))
		return
	}

	var ev BookTickerEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil || ev.Symbol == "" {
		c.drop(ctx, "malformed")
		return
	}
	if !c.advance(ev.Symbol, ev.UpdateID) {
		c.drop(ctx, "out_of_order")
		return
	}
	c.frames.Add(ctx, 1)

	c.mu.RLock()
	fn := c.handler
	c.mu.RUnlock()
	if fn != nil {
		fn(&ev)
	}
}

// advance accepts id if it is newer than the last one seen for symbol.
// Frames without an id are always accepted.
func (c *Client) advance(symbol string, id int64) bool {
	if id == 0 {
		return true
	}
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	if id <= c.lastSeq[symbol] {
		return false
	}
	c.lastSeq[symbol] = id
	return true
}

func (c *Client) drop(ctx context.Context, reason string) {
	c.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}
