package contracts

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuote(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		symbol        string
		price         float64
		previousClose float64
		wantErr       bool
	}{
		{"valid", "aapl ", 106.2, 100, false},
		{"zero price", "AAPL", 0, 100, true},
		{"negative price", "AAPL", -1, 100, true},
		{"NaN price", "AAPL", math.NaN(), 100, true},
		{"infinite price", "AAPL", math.Inf(1), 100, true},
		{"zero previous close", "AAPL", 100, 0, true},
		{"negative previous close", "AAPL", 100, -50, true},
		{"infinite previous close", "AAPL", 100, math.Inf(-1), true},
		{"empty symbol", "  ", 100, 99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuote(tt.symbol, tt.price, tt.previousClose, 1000, now)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidQuote), "expected ErrInvalidQuote, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "AAPL", q.Symbol)
		})
	}
}

func TestQuote_ChangePercent(t *testing.T) {
	q, err := NewQuote("NVDA", 95.2, 100, 0, time.Now())
	require.NoError(t, err)

	assert.InDelta(t, -4.8, q.Change(), 1e-9)
	assert.InDelta(t, -4.8, q.ChangePercent(), 1e-9)
}

func TestQuote_NegativeVolumeClamped(t *testing.T) {
	q, err := NewQuote("MSFT", 10, 9, -5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.Volume)
}

func TestQuote_BelowFloor(t *testing.T) {
	q := Quote{Symbol: "PENNY", Price: 4.99, PreviousClose: 4}
	assert.True(t, q.BelowFloor(5))
	assert.False(t, q.BelowFloor(4.99))
}

func TestCountHigh(t *testing.T) {
	alerts := []Alert{
		{Symbol: "AAPL", Severity: SeverityHigh},
		{Symbol: "NVDA", Severity: SeverityNormal, Change: -1},
	}
	assert.Equal(t, 1, CountHigh(alerts))
	assert.False(t, alerts[1].IsUp())
}
