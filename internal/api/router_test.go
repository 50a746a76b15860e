package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketscan/backend/internal/api/handlers"
	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/external/groq"
	"github.com/wonny/marketscan/backend/internal/history"
	"github.com/wonny/marketscan/backend/internal/insight"
	"github.com/wonny/marketscan/backend/internal/market"
	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

var known = map[string]bool{"SP100": true, "TECH_USA": true, "CUSTOM": true}

type fakeService struct {
	active     string
	views      map[string]scanner.View
	refreshErr error
	ensured    []string
	updated    map[string][]string
}

func newFakeService() *fakeService {
	scanTime := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	age := 1
	return &fakeService{
		active: "SP100",
		views: map[string]scanner.View{
			"TECH_USA": {
				UniverseID: "TECH_USA",
				Alerts:     []contracts.Alert{{Symbol: "NVDA", ChangePercent: 6, Severity: contracts.SeverityHigh}},
				LastScan:   &scanTime,
				AgeMinutes: &age,
				Scanned:    true,
			},
		},
		updated: make(map[string][]string),
	}
}

func (f *fakeService) resolve(id string) (string, error) {
	if id == "" {
		return f.active, nil
	}
	if err := contracts.ValidateUniverseID(id); err != nil {
		return "", err
	}
	if !known[id] {
		return "", fmt.Errorf("%s: %w", id, contracts.ErrUnknownUniverse)
	}
	return id, nil
}

func (f *fakeService) GetAlerts(id string) (scanner.View, error) {
	id, err := f.resolve(id)
	if err != nil {
		return scanner.View{}, err
	}
	if v, ok := f.views[id]; ok {
		return v, nil
	}
	return scanner.View{UniverseID: id, Alerts: []contracts.Alert{}, Stale: true}, nil
}

func (f *fakeService) EnsureScanned(_ context.Context, id string) (scanner.View, error) {
	f.ensured = append(f.ensured, id)
	if id == "CUSTOM" {
		return scanner.View{}, fmt.Errorf("%w: all fetches failed", contracts.ErrUpstreamUnavailable)
	}
	return f.GetAlerts(id)
}

func (f *fakeService) GetStatus(id string) (scanner.Status, error) {
	id, err := f.resolve(id)
	if err != nil {
		return scanner.Status{}, err
	}
	return scanner.Status{UniverseID: id, IsOpen: true, ActiveUniverse: f.active}, nil
}

func (f *fakeService) ForceRefresh(_ context.Context, id string) (scanner.Result, error) {
	id, err := f.resolve(id)
	if err != nil {
		return scanner.Result{}, err
	}
	if f.refreshErr != nil {
		return scanner.Result{}, f.refreshErr
	}
	return scanner.Result{UniverseID: id, ScanID: "scan-1", Alerts: []contracts.Alert{}}, nil
}

func (f *fakeService) ActiveUniverse() string { return f.active }

func (f *fakeService) SetActiveUniverse(id string) error {
	id, err := f.resolve(id)
	if err != nil {
		return err
	}
	f.active = id
	return nil
}

func (f *fakeService) UpdateUniverseSymbols(_ context.Context, id string, symbols []string) ([]string, error) {
	if _, err := f.resolve(id); err != nil {
		return nil, err
	}
	norm := contracts.NormalizeSymbols(symbols)
	if err := contracts.ValidateSymbols(norm); err != nil {
		return nil, err
	}
	f.updated[id] = norm
	return norm, nil
}

func (f *fakeService) LatestAlerts() scanner.Latest {
	view, _ := f.GetAlerts(f.active)
	return scanner.Latest{
		UniverseID:   view.UniverseID,
		Alerts:       view.Alerts,
		LastScan:     view.LastScan,
		MarketStatus: market.Status{IsOpen: true, Timezone: "America/New_York"},
	}
}

func (f *fakeService) FetchQuote(_ context.Context, symbol string) (contracts.Quote, error) {
	symbols := contracts.NormalizeSymbols([]string{symbol})
	if err := contracts.ValidateSymbols(symbols); err != nil {
		return contracts.Quote{}, err
	}
	switch symbols[0] {
	case "NVDA":
		return contracts.NewQuote("NVDA", 106, 100, 5000, time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC))
	case "DOWN":
		return contracts.Quote{}, fmt.Errorf("DOWN: %w", contracts.ErrTransient)
	default:
		return contracts.Quote{}, fmt.Errorf("%s: %w", symbols[0], contracts.ErrNotFound)
	}
}

type fakeCatalog struct{}

func (fakeCatalog) All(context.Context) []contracts.UniverseInfo {
	return []contracts.UniverseInfo{{ID: "SP100", SymbolsCount: 2}, {ID: "TECH_USA", SymbolsCount: 3}}
}

func (fakeCatalog) Get(_ context.Context, id string) (contracts.Universe, error) {
	if !known[id] {
		return contracts.Universe{}, fmt.Errorf("%w: %s", contracts.ErrUnknownUniverse, id)
	}
	return contracts.Universe{ID: id, Symbols: []string{"AAPL"}}, nil
}

type fakeHistory struct{ limit int }

func (f *fakeHistory) Recent(_ context.Context, universeID string, limit int) ([]history.Run, error) {
	f.limit = limit
	return []history.Run{{ScanID: "r1", UniverseID: universeID}}, nil
}

type fakeLLM struct{}

func (fakeLLM) Complete(context.Context, groq.ChatRequest) (string, error) {
	return "NEWS: Chips rally\nQUOTE: \"Patience.\" - Ray Dalio", nil
}

type fixture struct {
	svc     *fakeService
	history *fakeHistory
	router  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	svc := newFakeService()
	hist := &fakeHistory{}

	router := NewRouter(Handlers{
		Alerts:    handlers.NewAlertHandler(svc, hist, log),
		Universes: handlers.NewUniverseHandler(fakeCatalog{}, svc, log),
		AI: handlers.NewAIHandler(
			insight.NewAssistant(fakeLLM{}, "", log),
			insight.NewDailyService(fakeLLM{}, "", nil, log),
			svc, log),
		History: true,
	}, log)

	return &fixture{svc: svc, history: hist, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "OPTIONS", "/api/alerts/refresh", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestGetAlerts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/alerts?universe=tech_usa", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "TECH_USA", body["universeId"])
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, true, body["scanned"])
	assert.Empty(t, f.svc.ensured, "scanned universes are served from cache")
}

func TestGetAlerts_NeverScannedWaitsForInitialScan(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"SP100"}, f.svc.ensured)

	body := decode(t, rec)
	assert.Equal(t, false, body["scanned"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, []interface{}{}, body["alerts"])
}

func TestGetAlerts_UpstreamDownOnFirstReadServesEmptyView(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/alerts?universe=custom", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"CUSTOM"}, f.svc.ensured)

	body := decode(t, rec)
	assert.Equal(t, "CUSTOM", body["universeId"])
	assert.Equal(t, false, body["scanned"])
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["alerts"])
	assert.Contains(t, body["message"], "No data yet")
}

func TestGetLatest(t *testing.T) {
	f := newFixture(t)
	f.svc.active = "TECH_USA"

	rec := f.do(t, "GET", "/api/alerts/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "TECH_USA", body["universeId"])
	assert.Len(t, body["alerts"], 1)
	assert.NotNil(t, body["lastScan"])
	status, ok := body["marketStatus"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, status["isOpen"])
	assert.Empty(t, f.svc.ensured, "latest never scans")
}

func TestGetQuote(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/alerts/quote/nvda", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "NVDA", body["symbol"])
	assert.Equal(t, float64(106), body["price"])
	assert.Equal(t, float64(100), body["previousClose"])
	assert.InDelta(t, 6, body["change"], 1e-9)
	assert.InDelta(t, 6, body["changePercent"], 1e-9)
	assert.Equal(t, float64(5000), body["volume"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown universe", "GET", "/api/alerts?universe=NOPE", "", http.StatusNotFound},
		{"malformed universe", "GET", "/api/alerts/status?universe=bad-id!", "", http.StatusBadRequest},
		{"upstream unavailable on first read", "GET", "/api/alerts?universe=CUSTOM", "", http.StatusOK},
		{"unknown refresh", "POST", "/api/alerts/refresh", `{"universeId":"NOPE"}`, http.StatusNotFound},
		{"bad json", "POST", "/api/alerts/refresh", `{`, http.StatusBadRequest},
		{"unknown universe get", "GET", "/api/universes/NOPE", "", http.StatusNotFound},
		{"invalid symbol", "PUT", "/api/universes/TECH_USA", `{"symbols":["AAPL","$$$"]}`, http.StatusBadRequest},
		{"missing symbols", "PUT", "/api/universes/TECH_USA", `{}`, http.StatusBadRequest},
		{"missing active id", "POST", "/api/universes/scanner/universe", `{}`, http.StatusBadRequest},
		{"empty chat", "POST", "/api/ai/chat", `{"message":"  "}`, http.StatusBadRequest},
		{"wrong method", "DELETE", "/api/alerts", "", http.StatusMethodNotAllowed},
		{"wrong method on status", "DELETE", "/api/alerts/status", "", http.StatusMethodNotAllowed},
		{"wrong method on refresh", "GET", "/api/alerts/refresh", "", http.StatusMethodNotAllowed},
		{"wrong method on universe", "PATCH", "/api/universes/TECH_USA", "", http.StatusMethodNotAllowed},
		{"wrong method on insight", "PUT", "/api/ai/insight", "", http.StatusMethodNotAllowed},
		{"unknown route", "GET", "/api/nope", "", http.StatusNotFound},
		{"invalid quote symbol", "GET", "/api/alerts/quote/$$$", "", http.StatusBadRequest},
		{"unknown quote symbol", "GET", "/api/alerts/quote/ZZZZ", "", http.StatusNotFound},
		{"quote provider failure", "GET", "/api/alerts/quote/DOWN", "", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/alerts/refresh", `{"universeId":"tech_usa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TECH_USA", decode(t, rec)["universeId"])
}

func TestRefresh_TooSoon(t *testing.T) {
	f := newFixture(t)
	f.svc.refreshErr = &contracts.TooSoonError{UniverseID: "SP100", RetryAfter: 2 * time.Minute}

	rec := f.do(t, "POST", "/api/alerts/refresh", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "120", rec.Header().Get("Retry-After"))
	assert.Equal(t, float64(2), decode(t, rec)["retryAfterMinutes"])
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/api/alerts/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SP100", decode(t, rec)["universeId"])
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/alerts/history?universe=TECH_USA&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, f.history.limit)
	assert.Len(t, decode(t, rec)["runs"], 1)

	rec = f.do(t, "GET", "/api/alerts/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_NotMounted(t *testing.T) {
	log := logger.Nop()
	svc := newFakeService()
	router := NewRouter(Handlers{
		Alerts:    handlers.NewAlertHandler(svc, nil, log),
		Universes: handlers.NewUniverseHandler(fakeCatalog{}, svc, log),
	}, log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/alerts/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ai/chat", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUniverses(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/universes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["universes"], 2)
	assert.Equal(t, "SP100", body["activeUniverse"])

	rec = f.do(t, "GET", "/api/universes/tech_usa", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "PUT", "/api/universes/TECH_USA", `{"symbols":[" nvda ","amd","NVDA"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"NVDA", "AMD"}, f.svc.updated["TECH_USA"])

	rec = f.do(t, "POST", "/api/universes/custom", `{"symbols":["pltr"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"PLTR"}, f.svc.updated["CUSTOM"])

	rec = f.do(t, "POST", "/api/universes/scanner/universe", `{"universeId":"tech_usa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TECH_USA", f.svc.active)
}

func TestAIEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/ai/chat", `{"message":"What moved?","mode":"fundamental","universeId":"TECH_USA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "fundamental", body["mode"])
	assert.NotEmpty(t, body["response"])

	rec = f.do(t, "GET", "/api/ai/insight?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chips rally", decode(t, rec)["news"])

	rec = f.do(t, "POST", "/api/ai/insight/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", decode(t, rec)["language"])
}

func TestRecoveryMiddleware(t *testing.T) {
	log := logger.Nop()
	h := recoveryMiddleware(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
