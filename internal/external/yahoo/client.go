package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

const (
	providerName = "yahoo"
	// Yahoo rejects the default Go user agent
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Client fetches quotes from the Yahoo Finance chart endpoint.
// No API key; throttling shows up as 429 or "Too Many Requests" bodies.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Client{
		httpClient: httpClient.WithUserAgent(browserUserAgent),
		logger:     log.Component("yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol              string  `json:"symbol"`
	RegularMarketPrice  float64 `json:"regularMarketPrice"`
	ChartPreviousClose  float64 `json:"chartPreviousClose"`
	PreviousClose       float64 `json:"previousClose"`
	RegularMarketVolume int64   `json:"regularMarketVolume"`
	RegularMarketTime   int64   `json:"regularMarketTime"`
}

// Name implements contracts.QuoteSource
func (c *Client) Name() string {
	return providerName
}

// FetchQuote implements contracts.QuoteSource
func (c *Client) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return contracts.Quote{}, external.TransportError(providerName, symbol, err)
	}
	defer resp.Body.Close()

	var data chartResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&data)

	if resp.StatusCode != http.StatusOK {
		// Unknown symbols are a 404 with a chart.error body
		return contracts.Quote{}, external.StatusError(providerName, symbol, resp.StatusCode)
	}
	if decodeErr != nil {
		return contracts.Quote{}, fmt.Errorf("%s %s: decode response: %w: %v", providerName, symbol, contracts.ErrTransient, decodeErr)
	}

	if e := data.Chart.Error; e != nil {
		return contracts.Quote{}, classifyChartError(symbol, e.Code, e.Description)
	}
	if len(data.Chart.Result) == 0 {
		return contracts.Quote{}, fmt.Errorf("%s %s: %w", providerName, symbol, contracts.ErrNotFound)
	}

	meta := data.Chart.Result[0].Meta
	previousClose := meta.ChartPreviousClose
	if previousClose == 0 {
		previousClose = meta.PreviousClose
	}
	if meta.RegularMarketPrice == 0 && previousClose == 0 {
		return contracts.Quote{}, fmt.Errorf("%s %s: %w", providerName, symbol, contracts.ErrNotFound)
	}

	ts := c.now()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0)
	}

	q, err := contracts.NewQuote(symbol, meta.RegularMarketPrice, previousClose, meta.RegularMarketVolume, ts)
	if err != nil {
		return contracts.Quote{}, fmt.Errorf("%s: %w", providerName, err)
	}
	return q, nil
}

// classifyChartError maps the chart.error payload returned with HTTP 200
func classifyChartError(symbol, code, description string) error {
	text := strings.ToLower(code + " " + description)
	switch {
	case strings.Contains(text, "too many requests"), strings.Contains(text, "crumb"):
		return fmt.Errorf("%s %s: %w: %s", providerName, symbol, contracts.ErrRateLimited, description)
	case strings.Contains(text, "not found"), strings.Contains(text, "no data"):
		return fmt.Errorf("%s %s: %w", providerName, symbol, contracts.ErrNotFound)
	default:
		return fmt.Errorf("%s %s: %w: %s", providerName, symbol, contracts.ErrTransient, description)
	}
}
