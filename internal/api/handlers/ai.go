package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/wonny/marketscan/backend/internal/insight"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// DailyInsights serves the cached daily insight
type DailyInsights interface {
	Current(ctx context.Context, lang string) insight.Daily
	Refresh(ctx context.Context, lang string) insight.Daily
}

// AIHandler handles the assistant and insight endpoints
type AIHandler struct {
	assistant *insight.Assistant
	daily     DailyInsights
	svc       AlertService
	logger    *logger.Logger
}

// NewAIHandler creates a new AI handler
func NewAIHandler(assistant *insight.Assistant, daily DailyInsights, svc AlertService, log *logger.Logger) *AIHandler {
	return &AIHandler{
		assistant: assistant,
		daily:     daily,
		svc:       svc,
		logger:    log.Component("api-ai"),
	}
}

type chatRequest struct {
	Message    string `json:"message"`
	Mode       string `json:"mode"`
	UniverseID string `json:"universeId"`
}

// Chat answers a question with the universe's alerts as context
// POST /api/ai/chat {"message":"...","mode":"technical"}
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	view, err := h.svc.GetAlerts(strings.ToUpper(strings.TrimSpace(req.UniverseID)))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	reply := h.assistant.Chat(r.Context(), req.Message, insight.ParseMode(req.Mode), view.Alerts)
	respondJSON(w, http.StatusOK, reply)
}

// GetInsight returns the daily insight
// GET /api/ai/insight?lang=en
func (h *AIHandler) GetInsight(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.daily.Current(r.Context(), r.URL.Query().Get("lang")))
}

// RefreshInsight regenerates the daily insight
// POST /api/ai/insight/refresh?lang=en
func (h *AIHandler) RefreshInsight(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.daily.Refresh(r.Context(), r.URL.Query().Get("lang")))
}
