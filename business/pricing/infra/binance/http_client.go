package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/circuitbreaker"
	"github.com/fd1az/swap-sentinel/internal/httpclient"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

const (
	BaseRESTURL = "https://api.binance.com"

	bookTickerEndpoint = "/api/v3/ticker/bookTicker"

	// bookTicker weighs 2 against a 6000/min IP budget.
	defaultRequestsPerMinute = 600
)

type HTTPClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:           BaseRESTURL,
		Timeout:           10 * time.Second,
		RequestsPerMinute: defaultRequestsPerMinute,
	}
}

// HTTPClient answers single-symbol book ticker lookups over REST.
type HTTPClient struct {
	http   *httpclient.Client
	cb     *circuitbreaker.CircuitBreaker[*BookTickerResponse]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	def := DefaultHTTPClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}

	hc, err := httpclient.New(
		httpclient.WithName(sourceName),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRateLimit(cfg.RequestsPerMinute),
	)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		http:   hc,
		cb:     circuitbreaker.New[*BookTickerResponse](circuitbreaker.DefaultConfig("binance-rest")),
		logger: log,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// GetBookTicker fetches the best bid and ask for symbol.
func (c *HTTPClient) GetBookTicker(ctx context.Context, symbol string) (*BookTickerResponse, error) {
	ctx, span := c.tracer.Start(ctx, "binance.rest.book_ticker",
		trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	out, err := c.cb.Execute(func() (*BookTickerResponse, error) {
		var book BookTickerResponse
		resp, err := c.http.Do(ctx, httpclient.Call{
			Method:   http.MethodGet,
			Path:     bookTickerEndpoint,
			Query:    url.Values{"symbol": {symbol}},
			Result:   &book,
			Endpoint: "book_ticker",
		})
		if err != nil {
			return nil, err
		}
		if err := statusError(resp); err != nil {
			return nil, err
		}
		return &book, nil
	})
	if err != nil {
		span.RecordError(err)
		if apperror.HasCode(err, apperror.CodeRateLimitExceeded) {
			return nil, err
		}
		return nil, apperror.External(apperror.CodeBinanceAPIError, "book ticker "+symbol, err)
	}

	c.logger.Debug(ctx, "rest book ticker", "symbol", symbol, "bid", out.BidPrice, "ask", out.AskPrice)
	return out, nil
}

// APIError is the {"code":..,"msg":..} body Binance returns on failure.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Message)
}

// statusError maps 429 and 418 (IP ban) to a rate limit error and decodes
// Binance's error body when there is one.
func statusError(resp *httpclient.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	var apiErr APIError
	var cause error = resp.Err(sourceName)
	if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Code != 0 {
		cause = &apiErr
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		return apperror.External(apperror.CodeRateLimitExceeded, sourceName, cause)
	}
	return cause
}
