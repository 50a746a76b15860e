package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external/groq"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// Mode selects the analyst persona
type Mode string

const (
	ModeTechnical   Mode = "technical"
	ModeFundamental Mode = "fundamental"
	ModeSentiment   Mode = "sentiment"
)

const (
	chatMaxTokens   = 500
	maxContextItems = 10

	fallbackRateLimited = "I apologize, but I've reached my rate limit. Please try again in a moment."
	fallbackError       = "I apologize, but I encountered an error. Please try rephrasing your question."
	fallbackEmpty       = "I apologize, but I could not generate a response."
)

type modeConfig struct {
	systemPrompt string
	temperature  float64
}

var modes = map[Mode]modeConfig{
	ModeTechnical: {
		systemPrompt: "You are a technical analysis expert. Focus on price action, volume, chart patterns, " +
			"indicators, and short-term trading opportunities. Be concise and actionable.",
		temperature: 0.7,
	},
	ModeFundamental: {
		systemPrompt: "You are a fundamental analysis expert. Focus on company financials, earnings, " +
			"business models, competitive advantages, and long-term investment value. Be thorough but clear.",
		temperature: 0.8,
	},
	ModeSentiment: {
		systemPrompt: "You are a market sentiment analyst. Focus on market psychology, news impact, " +
			"social trends, and crowd behavior. Explain the 'why' behind movements.",
		temperature: 0.9,
	},
}

// ParseMode maps unknown or empty input to technical
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := modes[m]; ok {
		return m
	}
	return ModeTechnical
}

// Completer is the LLM call the assistant needs
type Completer interface {
	Complete(ctx context.Context, req groq.ChatRequest) (string, error)
}

// ChatReply is the assistant's answer
type ChatReply struct {
	Response  string    `json:"response"`
	Mode      Mode      `json:"mode"`
	Language  string    `json:"language"`
	Fallback  bool      `json:"fallback"`
	Timestamp time.Time `json:"timestamp"`
}

// Assistant answers free-form questions with the current alerts as context
type Assistant struct {
	llm    Completer
	model  string
	logger *logger.Logger
	now    func() time.Time
}

// NewAssistant creates the chat assistant
func NewAssistant(llm Completer, model string, log *logger.Logger) *Assistant {
	if model == "" {
		model = "llama-3.1-8b-instant"
	}
	return &Assistant{
		llm:    llm,
		model:  model,
		logger: log.Component("assistant"),
		now:    time.Now,
	}
}

// Chat never fails: upstream errors turn into a fallback reply
func (a *Assistant) Chat(ctx context.Context, message string, mode Mode, alerts []contracts.Alert) ChatReply {
	cfg, ok := modes[mode]
	if !ok {
		mode = ModeTechnical
		cfg = modes[mode]
	}

	reply := ChatReply{
		Mode:      mode,
		Language:  DetectLanguage(message),
		Timestamp: a.now(),
	}

	system := cfg.systemPrompt + alertContext(alerts)
	if reply.Language != "en" {
		system += "\n\nAnswer in " + languageName(reply.Language) + "."
	}

	out, err := a.llm.Complete(ctx, groq.ChatRequest{
		Model: a.model,
		Messages: []groq.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: message},
		},
		Temperature: cfg.temperature,
		MaxTokens:   chatMaxTokens,
		TopP:        1,
	})

	switch {
	case errors.Is(err, contracts.ErrRateLimited):
		a.logger.WithError(err).Warn("Chat rate limited")
		reply.Response, reply.Fallback = fallbackRateLimited, true
	case err != nil:
		a.logger.WithError(err).Error("Chat completion failed")
		reply.Response, reply.Fallback = fallbackError, true
	case out == "":
		reply.Response, reply.Fallback = fallbackEmpty, true
	default:
		reply.Response = out
	}
	return reply
}

// alertContext renders the alert list appended to the system prompt
func alertContext(alerts []contracts.Alert) string {
	if len(alerts) == 0 {
		return ""
	}
	if len(alerts) > maxContextItems {
		alerts = alerts[:maxContextItems]
	}

	var b strings.Builder
	b.WriteString("\n\nCurrent market alerts:")
	for _, al := range alerts {
		sign := ""
		if al.ChangePercent > 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "\n%s: %s%.2f%% at $%.2f", al.Symbol, sign, al.ChangePercent, al.Price)
	}
	return b.String()
}
