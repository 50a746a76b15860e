package finnhub

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

const providerName = "finnhub"

// Client fetches quotes from the Finnhub REST API
// ⭐ SSOT: Finnhub calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Finnhub client
func NewClient(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("finnhub"),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// quoteResponse is the /quote payload
type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Volume        float64 `json:"v"`
	Timestamp     int64   `json:"t"`
}

// Name implements contracts.QuoteSource
func (c *Client) Name() string {
	return providerName
}

// FetchQuote implements contracts.QuoteSource
func (c *Client) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	if c.apiKey == "" {
		return contracts.Quote{}, external.MissingKey(providerName, "FINNHUB_KEY")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("token", c.apiKey)
	fullURL := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return contracts.Quote{}, external.TransportError(providerName, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contracts.Quote{}, external.StatusError(providerName, symbol, resp.StatusCode)
	}

	var data quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return contracts.Quote{}, fmt.Errorf("%s %s: decode response: %w: %v", providerName, symbol, contracts.ErrTransient, err)
	}

	// Unknown symbols come back as HTTP 200 with every field zero
	if data.Current == 0 && data.PreviousClose == 0 {
		return contracts.Quote{}, fmt.Errorf("%s %s: %w", providerName, symbol, contracts.ErrNotFound)
	}

	ts := c.now()
	if data.Timestamp > 0 {
		ts = time.Unix(data.Timestamp, 0)
	}

	q, err := contracts.NewQuote(symbol, data.Current, data.PreviousClose, int64(data.Volume), ts)
	if err != nil {
		return contracts.Quote{}, fmt.Errorf("%s: %w", providerName, err)
	}
	return q, nil
}
