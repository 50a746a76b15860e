package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

func newTestClient(t *testing.T, key string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(httputil.New(logger.Nop()).DisableRetry(), key, server.URL, logger.Nop())
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, "gsk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama-3.1-8b-instant", req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  NVDA looks extended.  "}}]}`))
	})

	out, err := client.Complete(context.Background(), ChatRequest{
		Model:       "llama-3.1-8b-instant",
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}},
		Temperature: 0.7,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, "NVDA looks extended.", out)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limit status", http.StatusTooManyRequests, `{}`, contracts.ErrRateLimited},
		{"rate limit code", http.StatusBadRequest, `{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`, contracts.ErrRateLimited},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, contracts.ErrMisconfigured},
		{"server error", http.StatusBadGateway, ``, contracts.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := client.Complete(context.Background(), ChatRequest{Model: "m"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestComplete_MissingKey(t *testing.T) {
	client := NewClient(httputil.New(logger.Nop()), "", "", logger.Nop())
	assert.False(t, client.Configured())

	_, err := client.Complete(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, contracts.ErrMisconfigured)
}
