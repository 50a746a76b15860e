package contracts

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	universeIDPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,31}$`)
	symbolPattern     = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)
)

// Universe is a named, ordered set of symbols scanned together
// ⭐ SSOT: registry → scanner handoff
type Universe struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Symbols     []string `json:"symbols"`
	MaxSymbols  int      `json:"maxSymbols"`
}

// UniverseInfo is the listing view of a universe
type UniverseInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SymbolsCount int    `json:"symbolsCount"`
	MaxSymbols   int    `json:"maxSymbols"`
}

// Info returns the listing view
func (u Universe) Info() UniverseInfo {
	return UniverseInfo{
		ID:           u.ID,
		Name:         u.Name,
		Description:  u.Description,
		SymbolsCount: len(u.Symbols),
		MaxSymbols:   u.MaxSymbols,
	}
}

// Contains checks if a symbol is in the universe
func (u Universe) Contains(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range u.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// NormalizeSymbols uppercases and trims every symbol, drops blanks and
// removes duplicates keeping the first occurrence.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidateSymbols checks normalized symbols against the ticker format
func ValidateSymbols(symbols []string) error {
	for _, s := range symbols {
		if !symbolPattern.MatchString(s) {
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
		}
	}
	return nil
}

// ValidateUniverseID rejects malformed universe ids
func ValidateUniverseID(id string) error {
	if !universeIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidUniverseID, id)
	}
	return nil
}
