package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Quote is a single point-in-time price observation for a symbol
// ⭐ SSOT: quote source → scanner handoff
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewQuote validates the raw upstream values and builds a Quote.
// Non-finite or non-positive prices and non-finite, zero or negative previous
// closes are rejected.
func NewQuote(symbol string, price, previousClose float64, volume int64, ts time.Time) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("%w: empty symbol", ErrInvalidQuote)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Quote{}, fmt.Errorf("%w: %s price %v", ErrInvalidQuote, symbol, price)
	}
	if math.IsNaN(previousClose) || math.IsInf(previousClose, 0) || previousClose <= 0 {
		return Quote{}, fmt.Errorf("%w: %s previous close %v", ErrInvalidQuote, symbol, previousClose)
	}
	if volume < 0 {
		volume = 0
	}

	return Quote{
		Symbol:        symbol,
		Price:         price,
		PreviousClose: previousClose,
		Volume:        volume,
		Timestamp:     ts,
	}, nil
}

// Change returns price - previous close
func (q Quote) Change() float64 {
	return q.Price - q.PreviousClose
}

// ChangePercent returns the change relative to the previous close, in percent
func (q Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	return q.Change() / q.PreviousClose * 100
}

// BelowFloor reports whether the price is under the minimum tradable price
func (q Quote) BelowFloor(minPrice float64) bool {
	return q.Price < minPrice
}
