package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/marketscan/backend/internal/api/handlers"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// Handlers groups everything the router mounts. AI and WS are optional.
type Handlers struct {
	Alerts    *handlers.AlertHandler
	Universes *handlers.UniverseHandler
	AI        *handlers.AIHandler
	WS        http.HandlerFunc
	History   bool // mount /api/alerts/history
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are declared in this function only
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	log = log.Component("api")
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Full paths on the root router keep wrong methods at 405

	// Alert endpoints (static paths before {symbol})
	r.HandleFunc("/api/alerts", h.Alerts.GetAlerts).Methods("GET")
	r.HandleFunc("/api/alerts/latest", h.Alerts.GetLatest).Methods("GET")
	r.HandleFunc("/api/alerts/status", h.Alerts.GetStatus).Methods("GET")
	r.HandleFunc("/api/alerts/refresh", h.Alerts.Refresh).Methods("POST")
	if h.History {
		r.HandleFunc("/api/alerts/history", h.Alerts.GetHistory).Methods("GET")
	}
	r.HandleFunc("/api/alerts/quote/{symbol}", h.Alerts.GetQuote).Methods("GET")

	// Universe endpoints (static paths before {id})
	r.HandleFunc("/api/universes", h.Universes.List).Methods("GET")
	r.HandleFunc("/api/universes/custom", h.Universes.UpdateCustom).Methods("POST")
	r.HandleFunc("/api/universes/scanner/universe", h.Universes.SetActive).Methods("POST")
	r.HandleFunc("/api/universes/{id}", h.Universes.Get).Methods("GET")
	r.HandleFunc("/api/universes/{id}", h.Universes.Update).Methods("PUT")

	// Assistant endpoints
	if h.AI != nil {
		r.HandleFunc("/api/ai/chat", h.AI.Chat).Methods("POST")
		r.HandleFunc("/api/ai/insight", h.AI.GetInsight).Methods("GET")
		r.HandleFunc("/api/ai/insight/refresh", h.AI.RefreshInsight).Methods("POST")
	}

	// Alert stream
	if h.WS != nil {
		r.HandleFunc("/ws/alerts", h.WS).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	// CORS wraps the router so preflights reach it before method matching
	return corsMiddleware(r)
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"service":   "marketscan-api",
		"timestamp": time.Now().UTC(),
	})
}

// statusRecorder captures the response code for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the logging middleware
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows any origin; preflight requests end here
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Expose-Headers", "Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
