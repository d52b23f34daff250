package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMeasureDeviation(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		quoted    string
		bps       string
		side      Side
	}{
		{"at par", "2500", "2500", "0", SideAtPar},
		{"quote pays 2 percent less", "2500", "2450", "-200", SideCheap},
		{"quote pays 40 bps more", "2500", "2510", "40", SideRich},
		{"usdc to eth direction", "0.0004", "0.000396", "-100", SideCheap},
		{"zero reference is not comparable", "0", "2500", "0", SideAtPar},
		{"negative reference is not comparable", "-1", "2500", "0", SideAtPar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeasureDeviation(d(tt.reference), d(tt.quoted))
			if !got.Bps.Equal(d(tt.bps)) {
				t.Errorf("bps = %s, want %s", got.Bps, tt.bps)
			}
			if got.Side != tt.side {
				t.Errorf("side = %s, want %s", got.Side, tt.side)
			}
		})
	}
}

func TestDeviation_Within(t *testing.T) {
	limit := d("100")
	for _, tc := range []struct {
		quoted string
		ok     bool
	}{
		{"2475", true},  // -100 bps, on the limit
		{"2525", true},  // +100 bps
		{"2474", false}, // -104 bps
		{"2530", false},
	} {
		dev := MeasureDeviation(d("2500"), d(tc.quoted))
		if dev.Within(limit) != tc.ok {
			t.Errorf("quoted %s (%s bps): within = %v, want %v", tc.quoted, dev.Bps, !tc.ok, tc.ok)
		}
	}
}

func TestReferencePrice_MidFor(t *testing.T) {
	ref := ReferencePrice{Symbol: "ETHUSDC", Bid: d("1999"), Ask: d("2001"), Timestamp: time.Now()}

	if !ref.MidFor(false).Equal(d("2000")) {
		t.Errorf("mid = %s", ref.MidFor(false))
	}
	if !ref.MidFor(true).Equal(d("0.0005")) {
		t.Errorf("inverted mid = %s", ref.MidFor(true))
	}
	if !(ReferencePrice{}).MidFor(true).IsZero() {
		t.Error("empty book should invert to zero, not panic")
	}
}
