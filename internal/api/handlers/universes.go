package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/universe"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// UniverseCatalog is the read side of the universe registry
type UniverseCatalog interface {
	All(ctx context.Context) []contracts.UniverseInfo
	Get(ctx context.Context, id string) (contracts.Universe, error)
}

// UniverseHandler handles universe API endpoints
type UniverseHandler struct {
	catalog UniverseCatalog
	svc     AlertService
	logger  *logger.Logger
}

// NewUniverseHandler creates a new universe handler
func NewUniverseHandler(catalog UniverseCatalog, svc AlertService, log *logger.Logger) *UniverseHandler {
	return &UniverseHandler{
		catalog: catalog,
		svc:     svc,
		logger:  log.Component("api-universes"),
	}
}

type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

type activeRequest struct {
	UniverseID string `json:"universeId"`
}

func pathID(r *http.Request) string {
	return strings.ToUpper(strings.TrimSpace(mux.Vars(r)["id"]))
}

// List returns every universe and the active one
// GET /api/universes
func (h *UniverseHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"universes":      h.catalog.All(r.Context()),
		"activeUniverse": h.svc.ActiveUniverse(),
	})
}

// Get returns one universe with its effective symbols
// GET /api/universes/{id}
func (h *UniverseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := contracts.ValidateUniverseID(id); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	u, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// Update replaces a universe's symbol list
// PUT /api/universes/{id} {"symbols":["AAPL","MSFT"]}
func (h *UniverseHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, pathID(r))
}

// UpdateCustom replaces the CUSTOM universe
// POST /api/universes/custom {"symbols":["AAPL","MSFT"]}
func (h *UniverseHandler) UpdateCustom(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, universe.Custom)
}

func (h *UniverseHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req symbolsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Symbols == nil {
		respondError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	symbols, err := h.svc.UpdateUniverseSymbols(r.Context(), id, req.Symbols)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"universeId":   id,
		"symbols":      symbols,
		"symbolsCount": len(symbols),
	})
}

// SetActive switches the scanner's active universe
// POST /api/universes/scanner/universe {"universeId":"TECH_USA"}
func (h *UniverseHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := strings.ToUpper(strings.TrimSpace(req.UniverseID))
	if id == "" {
		respondError(w, http.StatusBadRequest, "universeId is required")
		return
	}

	if err := h.svc.SetActiveUniverse(id); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	// a stale or never-scanned universe starts scanning in the background
	view, err := h.svc.GetAlerts(id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"activeUniverse": id,
		"scanInProgress": view.ScanInProgress,
	})
}
