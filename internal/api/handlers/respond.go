package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps the error taxonomy onto HTTP statuses
// ⭐ SSOT: error → status mapping lives here only
func respondServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	if tooSoon, ok := contracts.IsTooSoon(err); ok {
		minutes := tooSoon.RetryAfterMinutes()
		w.Header().Set("Retry-After", strconv.Itoa(minutes*60))
		respondJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":             err.Error(),
			"retryAfterMinutes": minutes,
		})
		return
	}

	switch {
	case contracts.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrUnknownUniverse), errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, contracts.ErrUpstreamUnavailable), errors.Is(err, contracts.ErrMisconfigured),
		errors.Is(err, contracts.ErrRateLimited), errors.Is(err, contracts.ErrTransient),
		errors.Is(err, contracts.ErrInvalidQuote):
		log.WithError(err).Warn("Upstream failure")
		respondError(w, http.StatusBadGateway, "Quote provider unavailable, try again later")
	default:
		log.WithError(err).Error("Request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody reads a JSON request body; an empty body leaves dst untouched
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
