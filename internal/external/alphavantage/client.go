package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

const providerName = "alphavantage"

// Client fetches GLOBAL_QUOTE data from Alpha Vantage
// ⭐ SSOT: Alpha Vantage calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
	now        func() time.Time
}

// NewClient creates a new Alpha Vantage client
func NewClient(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("alphavantage"),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

// globalQuoteResponse carries numbers as strings keyed "NN. name".
// Throttling arrives as HTTP 200 with a Note or Information field.
type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	ErrorMessage string            `json:"Error Message"`
}

// Name implements contracts.QuoteSource
func (c *Client) Name() string {
	return providerName
}

// FetchQuote implements contracts.QuoteSource
func (c *Client) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	if c.apiKey == "" {
		return contracts.Quote{}, external.MissingKey(providerName, "ALPHA_VANTAGE_KEY")
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)
	fullURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(ctx, fullURL)
	if err != nil {
		return contracts.Quote{}, external.TransportError(providerName, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contracts.Quote{}, external.StatusError(providerName, symbol, resp.StatusCode)
	}

	var data globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return contracts.Quote{}, fmt.Errorf("%s %s: decode response: %w: %v", providerName, symbol, contracts.ErrTransient, err)
	}

	if err := classifyNotice(symbol, data); err != nil {
		return contracts.Quote{}, err
	}
	if len(data.GlobalQuote) == 0 {
		return contracts.Quote{}, fmt.Errorf("%s %s: %w", providerName, symbol, contracts.ErrNotFound)
	}

	price := parseFloat(data.GlobalQuote["05. price"])
	previousClose := parseFloat(data.GlobalQuote["08. previous close"])
	volume, _ := strconv.ParseInt(strings.TrimSpace(data.GlobalQuote["06. volume"]), 10, 64)

	// "07. latest trading day" has no time of day, stamp with the fetch time
	q, err := contracts.NewQuote(symbol, price, previousClose, volume, c.now())
	if err != nil {
		return contracts.Quote{}, fmt.Errorf("%s: %w", providerName, err)
	}
	return q, nil
}

// classifyNotice maps the HTTP 200 notices onto the taxonomy
func classifyNotice(symbol string, data globalQuoteResponse) error {
	notice := data.Note
	if notice == "" {
		notice = data.Information
	}
	switch {
	case notice != "" && strings.Contains(strings.ToLower(notice), "apikey"):
		return fmt.Errorf("%s %s: %w: %s", providerName, symbol, contracts.ErrMisconfigured, notice)
	case notice != "":
		return fmt.Errorf("%s %s: %w: %s", providerName, symbol, contracts.ErrRateLimited, notice)
	case data.ErrorMessage != "":
		return fmt.Errorf("%s %s: %w: %s", providerName, symbol, contracts.ErrNotFound, data.ErrorMessage)
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
