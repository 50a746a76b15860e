// Package provider selects the configured quote source
package provider

import (
	"fmt"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external/alphavantage"
	"github.com/wonny/marketscan/backend/internal/external/finnhub"
	"github.com/wonny/marketscan/backend/internal/external/yahoo"
	"github.com/wonny/marketscan/backend/pkg/config"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

// New builds the QuoteSource named by QUOTE_PROVIDER.
// Each source gets its own HTTP client carrying that provider's shared rate limit.
// ⭐ SSOT: the quote source is chosen here only
func New(cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) (contracts.QuoteSource, error) {
	httpClient := httputil.NewWithTimeout(log, cfg.Scanner.FetchTimeout)

	switch cfg.QuoteProvider {
	case "finnhub":
		if limiter != nil {
			httpClient.WithRateLimiter(limiter, redis.FinnhubRateLimit)
		}
		return finnhub.NewClient(httpClient, cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL, log), nil
	case "yahoo":
		if limiter != nil {
			httpClient.WithRateLimiter(limiter, redis.YahooRateLimit)
		}
		return yahoo.NewClient(httpClient, cfg.Yahoo.BaseURL, log), nil
	case "alphavantage":
		if limiter != nil {
			httpClient.WithRateLimiter(limiter, redis.AlphaVantageRateLimit)
		}
		return alphavantage.NewClient(httpClient, cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown quote provider %q", contracts.ErrMisconfigured, cfg.QuoteProvider)
	}
}
