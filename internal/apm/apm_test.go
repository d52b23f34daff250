package apm

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{in: "", want: map[string]string{}},
		{in: "x-honeycomb-team=abc", want: map[string]string{"x-honeycomb-team": "abc"}},
		{in: "api-key = k1 , tenant=t=2", want: map[string]string{"api-key": "k1", "tenant": "t=2"}},
		{in: "novalue", wantErr: true},
		{in: "=v", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseHeaders(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if tt.wantErr {
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("%q: got %v, want %v", tt.in, got, tt.want)
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("%q: %s = %q, want %q", tt.in, k, got[k], v)
			}
		}
	}
}

func TestNewTraceProvider_None(t *testing.T) {
	tp, err := NewTraceProvider(context.Background(), Config{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("NewTraceProvider: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNewTraceProvider_Rejects(t *testing.T) {
	for _, cfg := range []Config{
		{Exporter: "jaeger"},
		{Exporter: ExporterZipkin},
	} {
		if _, err := NewTraceProvider(context.Background(), cfg); err == nil {
			t.Errorf("%q: expected error", cfg.Exporter)
		}
	}
}
