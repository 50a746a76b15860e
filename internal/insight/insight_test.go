package insight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external/groq"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []groq.ChatRequest
}

func (f *fakeLLM) Complete(_ context.Context, req groq.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"What is moving NVDA today?", "en"},
		{"¿Qué pasa con NVDA?", "es"},
		{"dame un análisis de AMD", "es"},
		{"Explain the dame fund", "es"},
		{"damage report", "en"},
		{"", "en"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.msg), tt.msg)
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSentiment, ParseMode(" Sentiment "))
	assert.Equal(t, ModeFundamental, ParseMode("fundamental"))
	assert.Equal(t, ModeTechnical, ParseMode(""))
	assert.Equal(t, ModeTechnical, ParseMode("astrology"))
}

func TestAssistant_Chat(t *testing.T) {
	llm := &fakeLLM{reply: "Momentum is strong."}
	a := NewAssistant(llm, "", logger.Nop())

	alerts := []contracts.Alert{
		{Symbol: "NVDA", ChangePercent: 6.123, Price: 106},
		{Symbol: "AMD", ChangePercent: -3.5, Price: 96.5},
	}
	reply := a.Chat(context.Background(), "What is moving?", ModeSentiment, alerts)

	assert.Equal(t, "Momentum is strong.", reply.Response)
	assert.Equal(t, ModeSentiment, reply.Mode)
	assert.Equal(t, "en", reply.Language)
	assert.False(t, reply.Fallback)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "llama-3.1-8b-instant", req.Model)
	assert.Equal(t, 0.9, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, "NVDA: +6.12% at $106.00")
	assert.Contains(t, req.Messages[0].Content, "AMD: -3.50% at $96.50")
	assert.Equal(t, "What is moving?", req.Messages[1].Content)
}

func TestAssistant_ChatFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"rate limited", "", contracts.ErrRateLimited, fallbackRateLimited},
		{"other error", "", errors.New("boom"), fallbackError},
		{"empty answer", "", nil, fallbackEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssistant(&fakeLLM{reply: tt.reply, err: tt.err}, "m", logger.Nop())
			reply := a.Chat(context.Background(), "hola, dime algo", Mode("bogus"), nil)
			assert.Equal(t, tt.want, reply.Response)
			assert.True(t, reply.Fallback)
			assert.Equal(t, ModeTechnical, reply.Mode)
			assert.Equal(t, "es", reply.Language)
		})
	}
}

func TestParseInsight(t *testing.T) {
	d := ParseInsight("NEWS: Fed holds rates steady,\nmarkets rally.\nQUOTE: \"Be fearful when others are greedy.\" - Warren Buffett")
	assert.Equal(t, "Fed holds rates steady,\nmarkets rally.", d.News)
	assert.Equal(t, `"Be fearful when others are greedy." - Warren Buffett`, d.Quote)

	d = ParseInsight("nothing useful")
	assert.Equal(t, placeholderNews, d.News)
	assert.Equal(t, placeholderQuote, d.Quote)

	d = ParseInsight("NEWS: Oil spikes on supply cut")
	assert.Equal(t, "Oil spikes on supply cut", d.News)
	assert.Equal(t, placeholderQuote, d.Quote)
}

func newTestDaily(llm Completer) (*DailyService, *time.Time) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	s := NewDailyService(llm, "", redis.NewCache(redis.Disabled(), "marketscan"), logger.Nop())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestDailyService_CachesForAnHour(t *testing.T) {
	llm := &fakeLLM{reply: "NEWS: Chips lead.\nQUOTE: \"Cut losses.\" - Jesse Livermore"}
	s, now := newTestDaily(llm)

	d := s.Current(context.Background(), "en")
	assert.Equal(t, "Chips lead.", d.News)
	assert.Equal(t, "llama-3.3-70b-versatile", llm.requests[0].Model)
	assert.Equal(t, 300, llm.requests[0].MaxTokens)
	assert.Contains(t, llm.requests[0].Messages[1].Content, "Tuesday, March 10, 2026")

	*now = now.Add(59 * time.Minute)
	s.Current(context.Background(), "en")
	assert.Equal(t, 1, llm.calls())

	*now = now.Add(2 * time.Minute)
	s.Current(context.Background(), "en")
	assert.Equal(t, 2, llm.calls())
}

func TestDailyService_FallbackOnError(t *testing.T) {
	llm := &fakeLLM{err: contracts.ErrTransient}
	s, _ := newTestDaily(llm)

	err := s.RefreshDaily(context.Background(), "es")
	assert.ErrorIs(t, err, contracts.ErrTransient)

	d := s.Current(context.Background(), "es")
	assert.True(t, d.Fallback)
	assert.Equal(t, fallbackNews, d.News)
	assert.Equal(t, "es", d.Language)
	assert.Equal(t, 1, llm.calls(), "fallback is remembered for the hour")
}

func TestDailyService_RefreshBypassesCache(t *testing.T) {
	llm := &fakeLLM{reply: "NEWS: A\nQUOTE: B"}
	s, _ := newTestDaily(llm)

	s.Current(context.Background(), "xx")
	d := s.Refresh(context.Background(), "en")
	assert.Equal(t, "A", d.News)
	assert.Equal(t, "en", d.Language)
	assert.Equal(t, 2, llm.calls())
}
