package metrics

import (
	"context"
	"testing"
)

func TestNewMeterProvider_NeedsReader(t *testing.T) {
	if _, err := NewMeterProvider(context.Background(), Config{ServiceName: "swap-sentinel"}); err == nil {
		t.Fatal("expected error with no reader")
	}
}

func TestNewMeterProvider_Prometheus(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), Config{ServiceName: "swap-sentinel", Prometheus: true})
	if err != nil {
		t.Fatalf("NewMeterProvider: %v", err)
	}
	defer mp.Shutdown(context.Background())

	c, err := mp.Meter("test").Int64Counter("swap_requests_total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	c.Add(context.Background(), 1)
}
