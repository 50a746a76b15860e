package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/httputil"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewClient(httputil.New(logger.Nop()).DisableRetry(), "demo", server.URL, logger.Nop())
}

func TestFetchQuote(t *testing.T) {
	client := newTestClient(t, `{"Global Quote":{"01. symbol":"IBM","02. open":"180.0","05. price":"190.80",
		"06. volume":"3500000","07. latest trading day":"2026-03-02","08. previous close":"180.00",
		"09. change":"10.80","10. change percent":"6.0000%"}}`)
	fixed := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	q, err := client.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 190.80, q.Price)
	assert.Equal(t, 180.0, q.PreviousClose)
	assert.Equal(t, int64(3500000), q.Volume)
	assert.Equal(t, fixed, q.Timestamp)
	assert.InDelta(t, 6.0, q.ChangePercent(), 1e-9)
}

func TestFetchQuote_Notices(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"note throttle", `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`, contracts.ErrRateLimited},
		{"information throttle", `{"Information":"Our standard API rate limit is 25 requests per day."}`, contracts.ErrRateLimited},
		{"bad key", `{"Information":"the parameter apikey is invalid or missing."}`, contracts.ErrMisconfigured},
		{"error message", `{"Error Message":"Invalid API call."}`, contracts.ErrNotFound},
		{"empty quote", `{"Global Quote":{}}`, contracts.ErrNotFound},
		{"zero price", `{"Global Quote":{"05. price":"0.0000","08. previous close":"1.0"}}`, contracts.ErrInvalidQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(t, tt.body).FetchQuote(context.Background(), "ZZZZ")
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFetchQuote_MissingKey(t *testing.T) {
	client := NewClient(httputil.New(logger.Nop()), "", "", logger.Nop())
	_, err := client.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, contracts.ErrMisconfigured))
}
