package universe

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// Registry maps universe ids to their definitions and persisted overrides
// ⭐ SSOT: symbol lists are resolved and updated only here
type Registry struct {
	defs   []Definition
	byID   map[string]Definition
	store  Store
	logger *logger.Logger

	// serializes read-modify-write of overrides
	mu sync.Mutex
}

// NewRegistry creates a registry over the given catalogue
func NewRegistry(defs []Definition, store Store, log *logger.Logger) (*Registry, error) {
	byID := make(map[string]Definition, len(defs))
	for i := range defs {
		if err := ValidateDefinition(&defs[i]); err != nil {
			return nil, err
		}
		if _, dup := byID[defs[i].ID]; dup {
			return nil, fmt.Errorf("duplicate universe id %s", defs[i].ID)
		}
		byID[defs[i].ID] = defs[i]
	}

	return &Registry{
		defs:   defs,
		byID:   byID,
		store:  store,
		logger: log.Component("universe"),
	}, nil
}

// Exists reports whether id is a known universe
func (r *Registry) Exists(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs returns every known universe id in catalogue order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.defs))
	for i, d := range r.defs {
		ids[i] = d.ID
	}
	return ids
}

func (r *Registry) definition(id string) (Definition, error) {
	if err := contracts.ValidateUniverseID(id); err != nil {
		return Definition{}, err
	}
	def, ok := r.byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", contracts.ErrUnknownUniverse, id)
	}
	return def, nil
}

// ListSymbols returns the override, or the defaults when none is stored,
// bounded to the universe's MaxSymbols.
func (r *Registry) ListSymbols(ctx context.Context, id string) ([]string, error) {
	def, err := r.definition(id)
	if err != nil {
		return nil, err
	}

	symbols, found, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load universe %s: %w", id, err)
	}
	if !found {
		symbols = def.Symbols
	}

	symbols = contracts.NormalizeSymbols(symbols)
	if len(symbols) > def.MaxSymbols {
		symbols = symbols[:def.MaxSymbols]
	}
	return symbols, nil
}

// Update normalizes, validates and persists a new symbol list.
// Validation failures happen before anything is written.
func (r *Registry) Update(ctx context.Context, id string, symbols []string) ([]string, error) {
	def, err := r.definition(id)
	if err != nil {
		return nil, err
	}

	normalized := contracts.NormalizeSymbols(symbols)
	if len(normalized) > def.MaxSymbols {
		return nil, fmt.Errorf("%w: %s allows at most %d symbols, got %d",
			contracts.ErrTooManySymbols, id, def.MaxSymbols, len(normalized))
	}
	if err := contracts.ValidateSymbols(normalized); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Save(ctx, id, normalized); err != nil {
		return nil, fmt.Errorf("save universe %s: %w", id, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"universe": id,
		"symbols":  len(normalized),
	}).Info("Universe symbols updated")

	return normalized, nil
}

// Get returns the universe with its effective symbol list
func (r *Registry) Get(ctx context.Context, id string) (contracts.Universe, error) {
	def, err := r.definition(id)
	if err != nil {
		return contracts.Universe{}, err
	}
	symbols, err := r.ListSymbols(ctx, id)
	if err != nil {
		return contracts.Universe{}, err
	}
	return def.universe(symbols), nil
}

// Info returns the listing view of a universe
func (r *Registry) Info(ctx context.Context, id string) (contracts.UniverseInfo, error) {
	u, err := r.Get(ctx, id)
	if err != nil {
		return contracts.UniverseInfo{}, err
	}
	return u.Info(), nil
}

// All lists every universe in catalogue order.
// A universe whose override cannot be read is listed with its defaults.
func (r *Registry) All(ctx context.Context) []contracts.UniverseInfo {
	out := make([]contracts.UniverseInfo, 0, len(r.defs))
	for _, def := range r.defs {
		info, err := r.Info(ctx, def.ID)
		if err != nil {
			r.logger.WithError(err).WithField("universe", def.ID).Warn("Falling back to default symbols")
			info = def.universe(def.Symbols).Info()
		}
		out = append(out, info)
	}
	return out
}
