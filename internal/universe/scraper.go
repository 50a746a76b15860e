package universe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

// DefaultSP100URL is the Wikipedia page listing S&P 100 constituents
const DefaultSP100URL = "https://en.wikipedia.org/wiki/S%26P_100"

// SP100Scraper reads the S&P 100 constituent table
// ⭐ SSOT: SP100 constituent scraping lives here only
type SP100Scraper struct {
	httpClient *httputil.Client
	cache      *redis.Cache
	logger     *logger.Logger
	url        string
}

// NewSP100Scraper creates a scraper; cache may be nil
func NewSP100Scraper(httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *SP100Scraper {
	return &SP100Scraper{
		httpClient: httpClient,
		cache:      cache,
		logger:     log.Component("sp100_scraper"),
		url:        DefaultSP100URL,
	}
}

// WithURL points the scraper at another page (tests, mirrors)
func (s *SP100Scraper) WithURL(url string) *SP100Scraper {
	s.url = url
	return s
}

// Fetch returns the constituent symbols in table order
func (s *SP100Scraper) Fetch(ctx context.Context) ([]string, error) {
	if s.cache == nil {
		return s.scrape(ctx)
	}

	var symbols []string
	err := s.cache.GetOrSet(ctx, redis.ConstituentsKey(SP100), &symbols, redis.TTLUniverse, func() (interface{}, error) {
		return s.scrape(ctx)
	})
	return symbols, err
}

func (s *SP100Scraper) scrape(ctx context.Context) ([]string, error) {
	resp, err := s.httpClient.Get(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	symbols := parseConstituents(doc)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no constituents found at %s", s.url)
	}

	s.logger.WithField("count", len(symbols)).Info("Scraped S&P 100 constituents")
	return symbols, nil
}

// parseConstituents reads the first column of table#constituents.
// Wikipedia writes class shares with a dot (BRK.B), which quote APIs accept.
func parseConstituents(doc *goquery.Document) []string {
	table := doc.Find("table#constituents")
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}

	var raw []string
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		symbol := strings.TrimSpace(cells.Eq(0).Text())
		if symbol != "" {
			raw = append(raw, symbol)
		}
	})

	symbols := contracts.NormalizeSymbols(raw)
	valid := symbols[:0]
	for _, sym := range symbols {
		if contracts.ValidateSymbols([]string{sym}) == nil {
			valid = append(valid, sym)
		}
	}
	return valid
}
