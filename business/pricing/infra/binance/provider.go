package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/business/pricing/app"
	"github.com/fd1az/swap-sentinel/business/pricing/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const sourceName = "binance"

var _ app.ReferencePriceSource = (*Provider)(nil)

type ProviderConfig struct {
	WebSocketURL string // empty means BaseWSURL
	HTTPURL      string // empty means BaseRESTURL
	Symbols      []string
	// StaleTimeout is the age after which a streamed book no longer counts.
	StaleTimeout time.Duration
	// EnableFallback asks REST when the streamed book is missing or stale.
	EnableFallback bool
}

func DefaultProviderConfig(symbols []string) ProviderConfig {
	return ProviderConfig{
		Symbols:        symbols,
		StaleTimeout:   5 * time.Second,
		EnableFallback: true,
	}
}

// Provider serves the freshest top of book per symbol: the stream when it
// is current, REST otherwise.
type Provider struct {
	cfg    ProviderConfig
	logger logger.LoggerInterface
	tracer trace.Tracer

	stream *Client
	rest   *HTTPClient // nil when fallback is off

	tickersMu sync.RWMutex
	tickers   map[string]domain.ReferencePrice
}

func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	symbols := make([]string, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		symbols[i] = strings.ToUpper(s)
	}
	cfg.Symbols = symbols
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = 5 * time.Second
	}

	stream, err := NewClient(ClientConfig{BaseURL: cfg.WebSocketURL, Symbols: symbols}, log)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		cfg:     cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		stream:  stream,
		tickers: make(map[string]domain.ReferencePrice, len(symbols)),
	}
	if cfg.EnableFallback {
		restCfg := DefaultHTTPClientConfig()
		if cfg.HTTPURL != "" {
			restCfg.BaseURL = cfg.HTTPURL
		}
		if p.rest, err = NewHTTPClient(restCfg, log); err != nil {
			return nil, fmt.Errorf("rest fallback: %w", err)
		}
	}
	stream.OnBookTicker(p.handleBookTicker)
	return p, nil
}

func (p *Provider) Connect(ctx context.Context) error { return p.stream.Connect(ctx) }

func (p *Provider) Close() error { return p.stream.Close() }

// ReferencePrice returns the latest valid top of book for symbol.
func (p *Provider) ReferencePrice(ctx context.Context, symbol string) (*domain.ReferencePrice, error) {
	symbol = strings.ToUpper(symbol)
	ctx, span := p.tracer.Start(ctx, "binance.reference_price",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	p.tickersMu.RLock()
	cached, have := p.tickers[symbol]
	p.tickersMu.RUnlock()

	switch {
	case have && !cached.IsStale(p.cfg.StaleTimeout):
		span.SetAttributes(attribute.String("source", "stream"))
		return &cached, nil
	case p.rest == nil && !have:
		return nil, apperror.New(apperror.CodeNotFound,
			apperror.WithContext("no book ticker for "+symbol))
	case p.rest == nil:
		age := time.Since(cached.Timestamp).Round(time.Second)
		return nil, apperror.New(apperror.CodeReferencePriceStale,
			apperror.WithContext(fmt.Sprintf("%s last updated %s ago", symbol, age)))
	}

	span.SetAttributes(attribute.String("source", "rest"), attribute.Bool("stale", have))
	p.logger.Debug(ctx, "reference price from rest", "symbol", symbol, "stale", have)

	resp, err := p.rest.GetBookTicker(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	fresh, err := toReferencePrice(resp.ToEvent(), time.Now())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	p.store(fresh)
	return &fresh, nil
}

func (p *Provider) handleBookTicker(ev *BookTickerEvent) {
	ref, err := toReferencePrice(ev, time.Now())
	if err != nil {
		p.logger.Debug(context.Background(), "book ticker rejected", "symbol", ev.Symbol, "error", err)
		return
	}
	p.store(ref)
}

func (p *Provider) store(ref domain.ReferencePrice) {
	p.tickersMu.Lock()
	p.tickers[ref.Symbol] = ref
	p.tickersMu.Unlock()
}

// toReferencePrice rejects unparsable and crossed books.
func toReferencePrice(ev *BookTickerEvent, at time.Time) (domain.ReferencePrice, error) {
	bid, ask, err := ev.Prices()
	if err != nil {
		return domain.ReferencePrice{}, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err), apperror.WithContext(ev.Symbol+" book prices"))
	}
	ref := domain.ReferencePrice{
		Symbol:    strings.ToUpper(ev.Symbol),
		Bid:       bid,
		Ask:       ask,
		Source:    sourceName,
		Timestamp: at,
	}
	if !ref.Valid() {
		return domain.ReferencePrice{}, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext(fmt.Sprintf("%s bid=%s ask=%s", ref.Symbol, bid, ask)))
	}
	return ref, nil
}
