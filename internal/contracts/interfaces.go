package contracts

import (
	"context"
	"time"
)

// QuoteSource fetches one quote per call.
// Failures wrap ErrNotFound, ErrRateLimited, ErrTransient or ErrMisconfigured.
type QuoteSource interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// SymbolLister resolves a universe id to its ordered, de-duplicated symbols
type SymbolLister interface {
	ListSymbols(ctx context.Context, universeID string) ([]string, error)
}

// MarketClock answers whether the exchange is trading at t
type MarketClock interface {
	IsOpen(t time.Time) bool
}
