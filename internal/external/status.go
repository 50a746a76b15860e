// Package external holds the upstream adapters and the shared mapping of
// HTTP outcomes onto the quote source error taxonomy.
package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/wonny/marketscan/backend/internal/contracts"
)

// StatusError maps a non-200 HTTP status onto the taxonomy
func StatusError(provider, symbol string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w (HTTP %d)", provider, symbol, contracts.ErrRateLimited, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w (HTTP %d)", provider, symbol, contracts.ErrMisconfigured, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", provider, symbol, contracts.ErrNotFound)
	case status >= 500:
		return fmt.Errorf("%s %s: %w (HTTP %d)", provider, symbol, contracts.ErrTransient, status)
	default:
		return fmt.Errorf("%s %s: unexpected HTTP %d: %w", provider, symbol, status, contracts.ErrTransient)
	}
}

// TransportError wraps a network failure as transient.
// Caller cancellation is passed through untouched.
func TransportError(provider, symbol string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s %s: %w: %v", provider, symbol, contracts.ErrTransient, err)
}

// MissingKey reports a source that cannot work without credentials
func MissingKey(provider, envVar string) error {
	return fmt.Errorf("%s: %w: %s is not set", provider, contracts.ErrMisconfigured, envVar)
}
