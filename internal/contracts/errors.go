package contracts

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Error taxonomy shared by quote sources, the scanner and the API layer
var (
	// Quote source outcomes
	ErrNotFound      = errors.New("symbol not found")
	ErrRateLimited   = errors.New("upstream rate limited")
	ErrTransient     = errors.New("transient upstream error")
	ErrMisconfigured = errors.New("quote source misconfigured")

	// Whole-scan failure: no symbol could be fetched
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Validation
	ErrUnknownUniverse   = errors.New("universe not found")
	ErrInvalidUniverseID = errors.New("invalid universe id")
	ErrTooManySymbols    = errors.New("too many symbols")
	ErrInvalidSymbol     = errors.New("invalid symbol")
	ErrInvalidQuote      = errors.New("invalid quote")
)

// TooSoonError rejects a forced scan issued inside the minimum gap
type TooSoonError struct {
	UniverseID string
	RetryAfter time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("scan for %s requested too soon, retry in %d min", e.UniverseID, e.RetryAfterMinutes())
}

// RetryAfterMinutes rounds the remaining wait up to whole minutes (minimum 1)
func (e *TooSoonError) RetryAfterMinutes() int {
	m := int(math.Ceil(e.RetryAfter.Minutes()))
	if m < 1 {
		m = 1
	}
	return m
}

// IsTooSoon unwraps a TooSoonError
func IsTooSoon(err error) (*TooSoonError, bool) {
	var tooSoon *TooSoonError
	if errors.As(err, &tooSoon) {
		return tooSoon, true
	}
	return nil, false
}

// IsValidation reports errors caused by bad caller input
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidUniverseID) ||
		errors.Is(err, ErrTooManySymbols) ||
		errors.Is(err, ErrInvalidSymbol)
}
