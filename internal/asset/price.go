package asset

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PricePrecision is the fixed-point scale of a Price rate.
const PricePrecision = 18

var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(PricePrecision), nil)

// Price is how many quote units one base unit is worth, e.g. 1 ETH = 2000.5 USDC.
type Price struct {
	rate  *big.Int
	base  *Asset
	quote *Asset
}

func NewPrice(base, quote *Asset, rate decimal.Decimal) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate.Shift(PricePrecision).BigInt(), base: base, quote: quote}
}

// Implied is the rate at which in was exchanged for out. It is false when
// in is zero.
func Implied(in, out Amount) (Price, bool) {
	if in.Asset() == nil || out.Asset() == nil || in.IsZero() {
		return Price{}, false
	}
	return NewPrice(in.Asset(), out.Asset(), out.ToDecimal().Div(in.ToDecimal())), true
}

func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

func (p Price) Base() *Asset  { return p.base }
func (p Price) Quote() *Asset { return p.quote }
func (p Price) IsZero() bool  { return p.rate == nil || p.rate.Sign() == 0 }

// Invert swaps base and quote. A zero price inverts to zero.
func (p Price) Invert() Price {
	inv := Price{rate: new(big.Int), base: p.quote, quote: p.base}
	if p.IsZero() {
		return inv
	}
	sq := new(big.Int).Mul(priceScale, priceScale)
	inv.rate.Div(sq, p.rate)
	return inv
}

// Readable orients the price so the rate is at least 1.
func (p Price) Readable() Price {
	if !p.IsZero() && p.rate.Cmp(priceScale) < 0 {
		return p.Invert()
	}
	return p
}

func (p Price) String() string {
	if p.base == nil || p.quote == nil {
		return p.Rate().String()
	}
	return fmt.Sprintf("1 %s = %s %s", p.base.Symbol(), p.Rate().Round(6).String(), p.quote.Symbol())
}
