package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

const providerName = "groq"

// Message is one chat turn
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completions body
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Client calls the Groq chat completions endpoint
// ⭐ SSOT: LLM calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new Groq client
func NewClient(httpClient *httputil.Client, apiKey, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Component("groq"),
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends a chat request and returns the first choice's content.
// Errors use the same taxonomy as the quote sources (429 → ErrRateLimited).
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if c.apiKey == "" {
		return "", external.MissingKey(providerName, "GROQ_API_KEY")
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}
	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/chat/completions", req, headers)
	if err != nil {
		return "", external.TransportError(providerName, req.Model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && strings.Contains(apiErr.Error.Code, "rate_limit") {
			return "", fmt.Errorf("%s: %w: %s", providerName, contracts.ErrRateLimited, apiErr.Error.Message)
		}
		err := external.StatusError(providerName, req.Model, resp.StatusCode)
		if apiErr.Error.Message != "" {
			err = fmt.Errorf("%w: %s", err, apiErr.Error.Message)
		}
		return "", err
	}

	var data chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("%s: decode response: %w: %v", providerName, contracts.ErrTransient, err)
	}
	if len(data.Choices) == 0 {
		return "", nil
	}

	content := strings.TrimSpace(data.Choices[0].Message.Content)
	c.logger.WithFields(map[string]interface{}{
		"model": req.Model,
		"chars": len(content),
	}).Debug("Chat completion received")
	return content, nil
}
