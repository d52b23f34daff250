package domain

import "github.com/shopspring/decimal"

var bps = decimal.NewFromInt(10000)

// Side says whether a quote pays more or less than the reference.
type Side string

const (
	SideRich  Side = "rich"
	SideCheap Side = "cheap"
	SideAtPar Side = "at_par"
)

// Deviation compares a quoted execution price with a reference price, both
// expressed as output units per input unit.
type Deviation struct {
	Reference decimal.Decimal
	Quoted    decimal.Decimal
	Bps       decimal.Decimal // signed, (quoted - reference) / reference
	Side      Side
}

// MeasureDeviation returns the signed deviation of quoted from reference.
// A non-positive reference cannot be compared against and yields zero bps.
func MeasureDeviation(reference, quoted decimal.Decimal) Deviation {
	d := Deviation{Reference: reference, Quoted: quoted, Bps: decimal.Zero, Side: SideAtPar}
	if !reference.IsPositive() {
		return d
	}
	diff := quoted.Sub(reference)
	d.Bps = diff.Div(reference).Mul(bps)
	switch diff.Sign() {
	case 1:
		d.Side = SideRich
	case -1:
		d.Side = SideCheap
	}
	return d
}

// Within reports |Bps| <= limit.
func (d Deviation) Within(limit decimal.Decimal) bool {
	return d.Bps.Abs().LessThanOrEqual(limit)
}

// AbsFloat is |Bps| for metric recording.
func (d Deviation) AbsFloat() float64 {
	f, _ := d.Bps.Abs().Float64()
	return f
}

// MidFor returns the reference mid in the direction of the swap. A market
// quoted as out/in is inverted.
func (r ReferencePrice) MidFor(inverted bool) decimal.Decimal {
	mid := r.Mid()
	if !inverted || mid.IsZero() {
		return mid
	}
	return decimal.NewFromInt(1).Div(mid)
}
