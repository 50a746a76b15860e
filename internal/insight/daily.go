package insight

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/marketscan/backend/internal/external/groq"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

const (
	insightMaxTokens   = 300
	insightTemperature = 0.7

	placeholderNews  = "Market analysis in progress..."
	placeholderQuote = `"The trend is your friend." - Trading Wisdom`
	fallbackNews     = "Stay alert to the market and manage your risk."
	fallbackQuote    = `"Risk comes from not knowing what you're doing." - Warren Buffett`

	insightSystemPrompt = "Market analyst providing concise insights. Focus on the most impactful news of the day."
)

var (
	newsPattern  = regexp.MustCompile(`(?s)NEWS:\s*(.+?)(?:\nQUOTE:|$)`)
	quotePattern = regexp.MustCompile(`QUOTE:\s*(.+)`)
)

// Daily is the headline + quote shown on the dashboard
type Daily struct {
	News      string    `json:"news"`
	Quote     string    `json:"quote"`
	Language  string    `json:"language"`
	Fallback  bool      `json:"fallback"`
	Timestamp time.Time `json:"timestamp"`
}

type memoEntry struct {
	daily Daily
	at    time.Time
}

// DailyService produces and caches the daily insight per language.
// Redis (when enabled) shares it across instances; memory covers the rest.
type DailyService struct {
	llm    Completer
	model  string
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	memo map[string]memoEntry
}

// NewDailyService creates the insight service; cache may be disabled
func NewDailyService(llm Completer, model string, cache *redis.Cache, log *logger.Logger) *DailyService {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return &DailyService{
		llm:    llm,
		model:  model,
		cache:  cache,
		ttl:    redis.TTLInsight,
		logger: log.Component("insight"),
		now:    time.Now,
		memo:   make(map[string]memoEntry),
	}
}

func normalizeLang(lang string) string {
	if strings.ToLower(strings.TrimSpace(lang)) == "es" {
		return "es"
	}
	return "en"
}

// Current returns the cached insight, generating it when older than an hour
func (s *DailyService) Current(ctx context.Context, lang string) Daily {
	lang = normalizeLang(lang)

	s.mu.RLock()
	m, ok := s.memo[lang]
	s.mu.RUnlock()
	if ok && s.now().Sub(m.at) < s.ttl {
		return m.daily
	}

	if s.cache != nil && s.cache.Enabled() {
		var d Daily
		found, err := s.cache.Get(ctx, redis.InsightKey(lang), &d)
		if err != nil {
			s.logger.WithError(err).Debug("Insight cache read failed")
		}
		if found {
			s.remember(lang, d)
			return d
		}
	}

	d, _ := s.refresh(ctx, lang)
	return d
}

// RefreshDaily regenerates the insight now. The fallback insight is still
// stored on failure; the error is returned for the caller to log.
func (s *DailyService) RefreshDaily(ctx context.Context, lang string) error {
	_, err := s.refresh(ctx, normalizeLang(lang))
	return err
}

// Refresh is RefreshDaily returning the new insight
func (s *DailyService) Refresh(ctx context.Context, lang string) Daily {
	d, _ := s.refresh(ctx, normalizeLang(lang))
	return d
}

type refreshResult struct {
	daily Daily
	err   error
}

func (s *DailyService) refresh(ctx context.Context, lang string) (Daily, error) {
	v, _, _ := s.group.Do(lang, func() (interface{}, error) {
		d, err := s.generate(ctx, lang)
		s.remember(lang, d)

		if err == nil && s.cache != nil {
			if cerr := s.cache.Set(ctx, redis.InsightKey(lang), d, s.ttl); cerr != nil {
				s.logger.WithError(cerr).Debug("Insight cache write failed")
			}
		}
		return refreshResult{daily: d, err: err}, nil
	})
	r := v.(refreshResult)
	return r.daily, r.err
}

func (s *DailyService) remember(lang string, d Daily) {
	s.mu.Lock()
	s.memo[lang] = memoEntry{daily: d, at: s.now()}
	s.mu.Unlock()
}

// generate asks the model; any failure yields the fallback insight
func (s *DailyService) generate(ctx context.Context, lang string) (Daily, error) {
	now := s.now()
	prompt := fmt.Sprintf("Generate for US market traders:\n"+
		"1. THE TOP news story of the day affecting markets (max 2 lines, be specific)\n"+
		"2. ONE inspirational trading quote from Warren Buffett, Jesse Livermore, Paul Tudor Jones, George Soros, or Ray Dalio\n\n"+
		"Date: %s\nFormat: NEWS: [text]\nQUOTE: \"[quote]\" - [Author]",
		now.Format("Monday, January 2, 2006"))
	if lang != "en" {
		prompt += "\nWrite the news in " + languageName(lang) + ", keep the NEWS:/QUOTE: labels."
	}

	out, err := s.llm.Complete(ctx, groq.ChatRequest{
		Model: s.model,
		Messages: []groq.Message{
			{Role: "system", Content: insightSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: insightTemperature,
		MaxTokens:   insightMaxTokens,
	})
	if err != nil {
		s.logger.WithError(err).WithField("lang", lang).Warn("Insight generation failed, using fallback")
		return Daily{
			News:      fallbackNews,
			Quote:     fallbackQuote,
			Language:  lang,
			Fallback:  true,
			Timestamp: now,
		}, err
	}

	d := ParseInsight(out)
	d.Language = lang
	d.Timestamp = now
	s.logger.WithField("lang", lang).Info("Daily insight updated")
	return d, nil
}

// ParseInsight extracts the NEWS and QUOTE sections of a model answer
func ParseInsight(text string) Daily {
	d := Daily{News: placeholderNews, Quote: placeholderQuote}
	if m := newsPattern.FindStringSubmatch(text); m != nil {
		if news := strings.TrimSpace(m[1]); news != "" {
			d.News = news
		}
	}
	if m := quotePattern.FindStringSubmatch(text); m != nil {
		if quote := strings.TrimSpace(m[1]); quote != "" {
			d.Quote = quote
		}
	}
	return d
}
