package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"github.com/fd1az/swap-sentinel/business/pricing/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
	"github.com/fd1az/swap-sentinel/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

func restServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != bookTickerEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if sym := r.URL.Query().Get("symbol"); sym != "ETHUSDC" {
			t.Errorf("expected symbol ETHUSDC, got %s", sym)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(BookTickerResponse{
			Symbol:   "ETHUSDC",
			BidPrice: "3400.50",
			BidQty:   "10.5",
			AskPrice: "3401.00",
			AskQty:   "8.0",
		})
	}))
}

func newTestProvider(t *testing.T, restURL string, fallback bool) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		Symbols:        []string{"ethusdc"},
		StaleTimeout:   100 * time.Millisecond,
		EnableFallback: fallback,
		HTTPURL:        restURL,
	}, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestProvider_FallbackToHTTP(t *testing.T) {
	var hits atomic.Int32
	server := restServer(t, &hits)
	defer server.Close()

	provider := newTestProvider(t, server.URL, true)
	ctx := context.Background()

	t.Run("fallback_when_no_ws_data", func(t *testing.T) {
		ref, err := provider.ReferencePrice(ctx, "ETHUSDC")
		if err != nil {
			t.Fatalf("expected HTTP fallback to succeed, got error: %v", err)
		}
		if !ref.Bid.Equal(decimal.RequireFromString("3400.50")) || !ref.Ask.Equal(decimal.RequireFromString("3401")) {
			t.Errorf("unexpected book %s/%s", ref.Bid, ref.Ask)
		}
		if !ref.Mid().Equal(decimal.RequireFromString("3400.75")) {
			t.Errorf("Mid = %s, want 3400.75", ref.Mid())
		}
	})

	t.Run("fresh_ws_data_skips_http", func(t *testing.T) {
		before := hits.Load()
		provider.handleBookTicker(&BookTickerEvent{Symbol: "ETHUSDC", BidPrice: "3000", AskPrice: "3001"})

		ref, err := provider.ReferencePrice(ctx, "ethusdc")
		if err != nil {
			t.Fatalf("ReferencePrice: %v", err)
		}
		if !ref.Bid.Equal(decimal.NewFromInt(3000)) {
			t.Errorf("expected stream price 3000, got %s", ref.Bid)
		}
		if hits.Load() != before {
			t.Error("HTTP called despite fresh stream data")
		}
	})

	t.Run("fallback_when_ws_data_stale", func(t *testing.T) {
		provider.store(domain.ReferencePrice{
			Symbol:    "ETHUSDC",
			Bid:       decimal.NewFromInt(3000),
			Ask:       decimal.NewFromInt(3001),
			Timestamp: time.Now().Add(-time.Hour),
		})

		ref, err := provider.ReferencePrice(ctx, "ETHUSDC")
		if err != nil {
			t.Fatalf("expected HTTP fallback to succeed on stale data, got error: %v", err)
		}
		if !ref.Bid.Equal(decimal.RequireFromString("3400.50")) {
			t.Errorf("expected HTTP fallback price 3400.50, got stale price %s", ref.Bid)
		}
	})
}

func TestProvider_NoFallback(t *testing.T) {
	provider := newTestProvider(t, "", false)
	ctx := context.Background()

	if _, err := provider.ReferencePrice(ctx, "ETHUSDC"); !apperror.HasCode(err, apperror.CodeNotFound) {
		t.Errorf("missing ticker: err = %v, want NOT_FOUND", err)
	}

	provider.store(domain.ReferencePrice{
		Symbol:    "ETHUSDC",
		Bid:       decimal.NewFromInt(1),
		Ask:       decimal.NewFromInt(2),
		Timestamp: time.Now().Add(-time.Minute),
	})
	if _, err := provider.ReferencePrice(ctx, "ETHUSDC"); !apperror.HasCode(err, apperror.CodeReferencePriceStale) {
		t.Errorf("stale ticker: err = %v, want REFERENCE_PRICE_STALE", err)
	}
}

func TestProvider_DropsInvalidBook(t *testing.T) {
	provider := newTestProvider(t, "", false)

	provider.handleBookTicker(&BookTickerEvent{Symbol: "ETHUSDC", BidPrice: "3402", AskPrice: "3401"})
	provider.handleBookTicker(&BookTickerEvent{Symbol: "ETHUSDC", BidPrice: "oops", AskPrice: "3401"})

	provider.tickersMu.RLock()
	_, ok := provider.tickers["ETHUSDC"]
	provider.tickersMu.RUnlock()
	if ok {
		t.Error("crossed or malformed book must not be stored")
	}
}

func TestProvider_StreamUpdates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("streams"); got != "ethusdc@bookTicker" {
			t.Errorf("streams = %q", got)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := context.Background()
		msg := `{"stream":"ethusdc@bookTicker","data":{"u":1,"s":"ETHUSDC","b":"3500.1","B":"1","a":"3500.3","A":"1"}}`
		conn.Write(ctx, websocket.MessageText, []byte(msg))
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	p, err := NewProvider(ProviderConfig{
		WebSocketURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Symbols:      []string{"ETHUSDC"},
		StaleTimeout: time.Minute,
	}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ref, err := p.ReferencePrice(ctx, "ETHUSDC"); err == nil {
			if !ref.Bid.Equal(decimal.RequireFromString("3500.1")) {
				t.Errorf("bid = %s, want 3500.1", ref.Bid)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no book ticker received from stream")
}

func TestBuildStreamURL(t *testing.T) {
	c, err := NewClient(ClientConfig{BaseURL: "wss://example.test:9443", Symbols: []string{"ETHUSDC", "BTCUSDT"}}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.buildStreamURL()
	if err != nil {
		t.Fatal(err)
	}
	want := "wss://example.test:9443/stream?streams=ethusdc@bookTicker/btcusdt@bookTicker"
	if got != want {
		t.Errorf("buildStreamURL = %s, want %s", got, want)
	}

	empty, _ := NewClient(ClientConfig{}, &mockLogger{})
	if _, err := empty.buildStreamURL(); !apperror.HasCode(err, apperror.CodeConfigurationError) {
		t.Errorf("no symbols: err = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestClient_DropsOutOfOrderFrames(t *testing.T) {
	c, err := NewClient(ClientConfig{Symbols: []string{"ETHUSDC"}}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	c.OnBookTicker(func(ev *BookTickerEvent) { got = append(got, ev.BidPrice) })

	frame := func(u int, bid string) []byte {
		return []byte(`{"stream":"ethusdc@bookTicker","data":{"u":` + strconv.Itoa(u) +
			`,"s":"ETHUSDC","b":"` + bid + `","a":"9999"}}`)
	}
	ctx := context.Background()
	c.handleFrame(ctx, frame(5, "1"))
	c.handleFrame(ctx, frame(4, "2"))
	c.handleFrame(ctx, frame(5, "3"))
	c.handleFrame(ctx, frame(6, "4"))
	c.handleFrame(ctx, []byte(`{"result":null,"id":1}`))

	if strings.Join(got, ",") != "1,4" {
		t.Errorf("delivered bids = %v, want [1 4]", got)
	}
}

func TestHTTPClient_RateLimitStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	}))
	defer server.Close()

	c, err := NewHTTPClient(HTTPClientConfig{BaseURL: server.URL}, &mockLogger{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetBookTicker(context.Background(), "ETHUSDC")
	if !apperror.HasCode(err, apperror.CodeRateLimitExceeded) {
		t.Fatalf("err = %v, want RATE_LIMIT_EXCEEDED", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -1003 {
		t.Errorf("cause = %v, want binance code -1003", err)
	}
}
