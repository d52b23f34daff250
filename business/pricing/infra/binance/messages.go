// Package binance implements the ReferencePriceSource port against Binance spot.
package binance

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// streamEnvelope wraps every frame on a combined stream.
type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is one top-of-book update. Prices arrive as strings.
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// BookTickerResponse is the REST /api/v3/ticker/bookTicker payload.
type BookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

// ToEvent lets REST and stream data share one code path.
func (r *BookTickerResponse) ToEvent() *BookTickerEvent {
	return &BookTickerEvent{
		Symbol:   r.Symbol,
		BidPrice: r.BidPrice,
		BidQty:   r.BidQty,
		AskPrice: r.AskPrice,
		AskQty:   r.AskQty,
	}
}

// Prices parses bid and ask.
func (e *BookTickerEvent) Prices() (bid, ask decimal.Decimal, err error) {
	if bid, err = decimal.NewFromString(e.BidPrice); err != nil {
		return
	}
	ask, err = decimal.NewFromString(e.AskPrice)
	return
}

func bookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}
