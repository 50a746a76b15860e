package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/history"
	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// AlertService is the scanner surface the HTTP layer uses
type AlertService interface {
	GetAlerts(universeID string) (scanner.View, error)
	EnsureScanned(ctx context.Context, universeID string) (scanner.View, error)
	GetStatus(universeID string) (scanner.Status, error)
	ForceRefresh(ctx context.Context, universeID string) (scanner.Result, error)
	ActiveUniverse() string
	SetActiveUniverse(universeID string) error
	UpdateUniverseSymbols(ctx context.Context, universeID string, symbols []string) ([]string, error)
	LatestAlerts() scanner.Latest
	FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error)
}

// HistoryReader serves persisted scans
type HistoryReader interface {
	Recent(ctx context.Context, universeID string, limit int) ([]history.Run, error)
}

// AlertHandler handles alert API endpoints
// ⭐ SSOT: alert API handlers live in this struct only
type AlertHandler struct {
	svc     AlertService
	history HistoryReader
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler; history may be nil
func NewAlertHandler(svc AlertService, hist HistoryReader, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		svc:     svc,
		history: hist,
		logger:  log.Component("api-alerts"),
	}
}

// AlertsResponse is the cache view plus presentation helpers
type AlertsResponse struct {
	scanner.View
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

func universeParam(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("universe")))
}

// GetAlerts returns the cached alerts of a universe
// GET /api/alerts?universe=TECH_USA
func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetAlerts(universeParam(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	// First request for a universe waits for its initial scan. A provider
	// outage keeps the empty view; the next read retries.
	if !view.Scanned {
		scanned, err := h.svc.EnsureScanned(r.Context(), view.UniverseID)
		switch {
		case err == nil:
			view = scanned
		case errors.Is(err, contracts.ErrUpstreamUnavailable), errors.Is(err, contracts.ErrMisconfigured):
			h.logger.WithError(err).WithField("universe", view.UniverseID).Warn("Initial scan failed, serving empty view")
		default:
			respondServiceError(w, h.logger, err)
			return
		}
	}

	resp := AlertsResponse{View: view, Count: len(view.Alerts)}
	if !view.Scanned {
		resp.Message = "No data yet: the market is closed or the first scan has not completed"
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetStatus returns market and scan status
// GET /api/alerts/status?universe=TECH_USA
func (h *AlertHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.GetStatus(universeParam(r))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetLatest returns the active universe's cached alerts without scanning
// GET /api/alerts/latest
func (h *AlertHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.LatestAlerts())
}

// QuoteResponse is a single symbol's price move
type QuoteResponse struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// GetQuote looks up one symbol on the quote provider
// GET /api/alerts/quote/{symbol}
func (h *AlertHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.FetchQuote(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, QuoteResponse{
		Symbol:        q.Symbol,
		Price:         q.Price,
		PreviousClose: q.PreviousClose,
		Change:        q.Change(),
		ChangePercent: q.ChangePercent(),
		Volume:        q.Volume,
		Timestamp:     q.Timestamp,
	})
}

type refreshRequest struct {
	UniverseID string `json:"universeId"`
}

// Refresh forces a scan, subject to the minimum gap
// POST /api/alerts/refresh {"universeId":"TECH_USA"}
func (h *AlertHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UniverseID == "" {
		req.UniverseID = universeParam(r)
	}

	result, err := h.svc.ForceRefresh(r.Context(), strings.ToUpper(strings.TrimSpace(req.UniverseID)))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"universe": result.UniverseID,
		"alerts":   len(result.Alerts),
		"skipped":  result.Skipped,
	}).Info("Manual refresh completed")
	respondJSON(w, http.StatusOK, result)
}

// GetHistory returns the latest persisted scans
// GET /api/alerts/history?universe=TECH_USA&limit=20
func (h *AlertHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "alert history is not configured")
		return
	}

	universeID := universeParam(r)
	if universeID == "" {
		universeID = h.svc.ActiveUniverse()
	}
	if err := contracts.ValidateUniverseID(universeID); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	limit := history.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}

	runs, err := h.history.Recent(r.Context(), universeID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"universeId": universeID,
		"runs":       runs,
	})
}
