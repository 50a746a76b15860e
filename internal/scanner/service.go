package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/market"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// maxHighPriority caps the listed high-priority symbols
const maxHighPriority = 20

// Universes is the slice of the registry the service needs
type Universes interface {
	contracts.SymbolLister
	Exists(id string) bool
	Update(ctx context.Context, id string, symbols []string) ([]string, error)
}

// MarketStatus reports the exchange session state
type MarketStatus interface {
	IsOpen(t time.Time) bool
	Status(t time.Time) market.Status
}

// Status is the per-universe status answer
type Status struct {
	UniverseID     string        `json:"universeId"`
	IsOpen         bool          `json:"isOpen"`
	Market         market.Status `json:"market"`
	LastScan       *time.Time    `json:"lastScan"`
	AlertCount     int           `json:"alertCount"`
	HighCount      int           `json:"highCount"`
	Stale          bool          `json:"stale"`
	AgeMinutes     *int          `json:"ageMinutes"`
	ScanInProgress bool          `json:"scanInProgress"`
	ActiveUniverse string        `json:"activeUniverse"`
	HighPriority   []string      `json:"highPrioritySymbols"`
}

// Latest is the active universe's cached alerts alongside the market state
type Latest struct {
	UniverseID   string            `json:"universeId"`
	Alerts       []contracts.Alert `json:"alerts"`
	LastScan     *time.Time        `json:"lastScan"`
	MarketStatus market.Status     `json:"marketStatus"`
}

// Service is the scanner context object handed to the API, CLI and scheduler
// ⭐ SSOT: the active universe and the scan cache live here, no globals
type Service struct {
	orch      *Orchestrator
	cache     *Cache
	universes Universes
	market    MarketStatus
	now       func() time.Time
	logger    *logger.Logger

	mu     sync.RWMutex
	active string

	prioMu       sync.Mutex
	highPriority map[string]time.Time // symbol → last time it alerted
}

// NewService builds the scanner service around an orchestrator
func NewService(orch *Orchestrator, universes Universes, mkt MarketStatus, defaultUniverse string, log *logger.Logger) (*Service, error) {
	if !universes.Exists(defaultUniverse) {
		return nil, fmt.Errorf("default universe %s: %w", defaultUniverse, contracts.ErrUnknownUniverse)
	}

	s := &Service{
		orch:         orch,
		cache:        orch.cache,
		universes:    universes,
		market:       mkt,
		now:          orch.opts.Now,
		logger:       log.Component("scanner-service"),
		active:       defaultUniverse,
		highPriority: make(map[string]time.Time),
	}
	orch.Subscribe(s.trackHighPriority)
	return s, nil
}

// Cache exposes the read side for the mirror and the CLI
func (s *Service) Cache() *Cache {
	return s.cache
}

// resolve maps "" to the active universe and rejects unknown ids
func (s *Service) resolve(universeID string) (string, error) {
	if universeID == "" {
		return s.ActiveUniverse(), nil
	}
	if err := contracts.ValidateUniverseID(universeID); err != nil {
		return "", err
	}
	if !s.universes.Exists(universeID) {
		return "", fmt.Errorf("%s: %w", universeID, contracts.ErrUnknownUniverse)
	}
	return universeID, nil
}

// GetAlerts never blocks on upstream I/O. A stale entry schedules a
// background scan and is served as-is.
func (s *Service) GetAlerts(universeID string) (View, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return View{}, err
	}

	view := s.cache.Read(id)
	if view.Stale && !view.ScanInProgress {
		if s.orch.Trigger(id) {
			view.ScanInProgress = true
			s.logger.WithField("universe", id).Debug("Stale read, background scan started")
		}
	}
	return view, nil
}

// EnsureScanned runs the initial synchronous scan for a universe that has
// never been scanned, then returns the fresh view.
func (s *Service) EnsureScanned(ctx context.Context, universeID string) (View, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return View{}, err
	}

	if view := s.cache.Read(id); view.Scanned {
		return view, nil
	}
	if _, err := s.orch.Scan(ctx, id); err != nil {
		return View{}, err
	}
	return s.cache.Read(id), nil
}

// GetStatus combines market state with the universe's cache entry
func (s *Service) GetStatus(universeID string) (Status, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return Status{}, err
	}

	now := s.now()
	view := s.cache.Read(id)
	return Status{
		UniverseID:     id,
		IsOpen:         s.market.IsOpen(now),
		Market:         s.market.Status(now),
		LastScan:       view.LastScan,
		AlertCount:     len(view.Alerts),
		HighCount:      contracts.CountHigh(view.Alerts),
		Stale:          view.Stale,
		AgeMinutes:     view.AgeMinutes,
		ScanInProgress: view.ScanInProgress,
		ActiveUniverse: s.ActiveUniverse(),
		HighPriority:   s.HighPrioritySymbols(),
	}, nil
}

// ForceRefresh is the gap-guarded manual scan
func (s *Service) ForceRefresh(ctx context.Context, universeID string) (Result, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return Result{}, err
	}
	return s.orch.ForceScan(ctx, id)
}

// Scan runs (or joins) a synchronous scan, used by the scheduler and CLI
func (s *Service) Scan(ctx context.Context, universeID string) (Result, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return Result{}, err
	}
	return s.orch.Scan(ctx, id)
}

// LatestAlerts is a pure cache read of the active universe; it never
// schedules a scan.
func (s *Service) LatestAlerts() Latest {
	id := s.ActiveUniverse()
	view := s.cache.Read(id)
	return Latest{
		UniverseID:   id,
		Alerts:       view.Alerts,
		LastScan:     view.LastScan,
		MarketStatus: s.market.Status(s.now()),
	}
}

// FetchQuote looks up one symbol on the configured quote source
func (s *Service) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	symbols := contracts.NormalizeSymbols([]string{symbol})
	if len(symbols) == 0 {
		return contracts.Quote{}, fmt.Errorf("%w: empty symbol", contracts.ErrInvalidSymbol)
	}
	if err := contracts.ValidateSymbols(symbols); err != nil {
		return contracts.Quote{}, err
	}
	return s.orch.Quote(ctx, symbols[0])
}

// SetActiveUniverse switches the default universe
func (s *Service) SetActiveUniverse(universeID string) error {
	id, err := s.resolve(universeID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.active
	s.active = id
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"from": prev,
		"to":   id,
	}).Info("Active universe changed")
	return nil
}

// ActiveUniverse returns the current default universe
func (s *Service) ActiveUniverse() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// UpdateUniverseSymbols persists a new symbol list; the next scan uses it
func (s *Service) UpdateUniverseSymbols(ctx context.Context, universeID string, symbols []string) ([]string, error) {
	id, err := s.resolve(universeID)
	if err != nil {
		return nil, err
	}
	return s.universes.Update(ctx, id, symbols)
}

// Subscribe registers a scan-completion callback
func (s *Service) Subscribe(fn Subscriber) {
	s.orch.Subscribe(fn)
}

// trackHighPriority remembers every symbol that crossed the alert threshold
func (s *Service) trackHighPriority(result Result) {
	if len(result.Alerts) == 0 {
		return
	}
	s.prioMu.Lock()
	defer s.prioMu.Unlock()
	for _, a := range result.Alerts {
		s.highPriority[a.Symbol] = a.ScanTime
	}
}

// HighPrioritySymbols lists the most recently alerting symbols, newest first
func (s *Service) HighPrioritySymbols() []string {
	s.prioMu.Lock()
	seen := make(map[string]time.Time, len(s.highPriority))
	symbols := make([]string, 0, len(s.highPriority))
	for sym, at := range s.highPriority {
		seen[sym] = at
		symbols = append(symbols, sym)
	}
	s.prioMu.Unlock()

	sort.Slice(symbols, func(i, j int) bool {
		ti, tj := seen[symbols[i]], seen[symbols[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return symbols[i] < symbols[j]
	})
	if len(symbols) > maxHighPriority {
		symbols = symbols[:maxHighPriority]
	}
	return symbols
}
