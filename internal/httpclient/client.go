// Package httpclient is the JSON client for the REST endpoints the sentinel
// calls: the Binance ticker fallback and the notification webhooks. Every
// request is traced, counted and optionally rate limited.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/swap-sentinel/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/swap-sentinel/internal/httpclient"

	defaultTimeout         = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute

	// Bodies larger than this are not decoded.
	maxBodyBytes = 1 << 20
)

// Option configures a Client.
type Option func(*Client)

// WithName labels spans and metrics. Defaults to the host of the base URL.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithBaseURL resolves relative request paths.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithRateLimit throttles the client to rpm requests a minute.
func WithRateLimit(rpm int) Option {
	return func(c *Client) { c.limiterRPM = rpm }
}

// WithTransport replaces the pooled transport. Tests use it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// Client sends JSON requests to one upstream.
type Client struct {
	name       string
	baseURL    string
	headers    http.Header
	http       *http.Client
	limiterRPM int
	limiter    *ratelimit.Limiter

	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		headers: http.Header{"Accept": []string{"application/json"}},
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext:     (&net.Dialer{KeepAlive: 10 * time.Second}).DialContext,
				MaxConnsPerHost: defaultMaxConnsPerHost,
				IdleConnTimeout: defaultIdleConnTimeout,
			},
		},
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	if c.name == "" {
		if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
			c.name = u.Host
		} else {
			c.name = "http"
		}
	}
	if c.limiterRPM > 0 {
		c.limiter = ratelimit.PerMinute(c.name, c.limiterRPM)
	}

	c.http.Transport = otelhttp.NewTransport(c.http.Transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	meter := otel.Meter(tracerName)
	var err error
	c.requests, err = meter.Int64Counter(
		"http_client_requests_total",
		metric.WithDescription("Outbound HTTP requests by upstream, endpoint and status class"),
	)
	if err != nil {
		return nil, fmt.Errorf("http client metrics: %w", err)
	}
	c.latency, err = meter.Float64Histogram(
		"http_client_latency_ms",
		metric.WithDescription("Outbound HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("http client metrics: %w", err)
	}
	return c, nil
}

// Name is the upstream label.
func (c *Client) Name() string { return c.name }

// Call describes one request. Endpoint is a low-cardinality metric label;
// it defaults to Path.
type Call struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Result   any
	Endpoint string
}

// Get fetches path and decodes a successful response into result.
func (c *Client) Get(ctx context.Context, path string, query url.Values, result any) (*Response, error) {
	return c.Do(ctx, Call{Method: http.MethodGet, Path: path, Query: query, Result: result})
}

// Post sends body as JSON and decodes a successful response into result,
// which may be nil.
func (c *Client) Post(ctx context.Context, path string, body, result any) (*Response, error) {
	return c.Do(ctx, Call{Method: http.MethodPost, Path: path, Body: body, Result: result})
}

// Do runs the call. A non-2xx status is not an error here; callers decide
// with Response.Err or their own decoding of the body.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	endpoint := call.Endpoint
	if endpoint == "" {
		endpoint = call.Path
		if strings.Contains(endpoint, "://") {
			// Absolute URLs carry secrets such as bot tokens.
			endpoint = "absolute"
		}
	}

	ctx, span := c.tracer.Start(ctx, "http."+strings.ToLower(call.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.upstream", c.name),
			attribute.String("http.endpoint", endpoint),
		),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			return nil, err
		}
	}

	req, err := c.newRequest(ctx, call)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.record(ctx, endpoint, "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s %s: %w", call.Method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.record(ctx, endpoint, "error", start)
		span.RecordError(err)
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	c.record(ctx, endpoint, out.statusClass(), start)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !out.IsSuccess() {
		span.SetStatus(codes.Error, resp.Status)
		return out, nil
	}
	if call.Result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, call.Result); err != nil {
			span.RecordError(err)
			return out, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, call Call) (*http.Request, error) {
	target := call.Path
	if !strings.Contains(target, "://") {
		target = c.baseURL + "/" + strings.TrimPrefix(call.Path, "/")
	}
	if len(call.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + call.Query.Encode()
	}

	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) record(ctx context.Context, endpoint, status string, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("upstream", c.name),
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	c.requests.Add(ctx, 1, attrs)
	c.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
