package commands

import (
	"context"
	"fmt"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/detector"
	"github.com/wonny/marketscan/backend/internal/external/provider"
	"github.com/wonny/marketscan/backend/internal/market"
	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/internal/universe"
	"github.com/wonny/marketscan/backend/pkg/config"
	"github.com/wonny/marketscan/backend/pkg/database"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

// cachePrefix namespaces every Redis key of this service
const cachePrefix = "marketscan"

// core holds the infrastructure shared by every command
type core struct {
	cfg      *config.Config
	log      *logger.Logger
	redis    *redis.Client
	db       *database.DB // nil without DATABASE_URL
	calendar *market.Calendar
	registry *universe.Registry
}

// loadCore reads config and connects the optional stores.
// Redis and Postgres failures are fatal only when they are configured.
func loadCore(ctx context.Context) (*core, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	c := &core{cfg: cfg, log: log}

	// 3. Market calendar
	c.calendar, err = market.NewCalendar(cfg.MarketTimezone)
	if err != nil {
		return nil, err
	}

	// 4. Redis (disabled client when REDIS_ENABLED=false)
	c.redis, err = redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Postgres (optional)
	if cfg.Database.Enabled() {
		c.db, err = database.New(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")
	}

	// 6. Universe registry
	c.registry, err = c.newRegistry(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *core) newRegistry(ctx context.Context) (*universe.Registry, error) {
	defs := universe.Builtins()
	if c.cfg.Universe.Catalog != "" {
		loaded, err := universe.LoadCatalog(c.cfg.Universe.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load universe catalog: %w", err)
		}
		defs = loaded
	}

	var store universe.Store
	switch c.cfg.Universe.Store {
	case "postgres":
		pg, err := universe.NewPostgresStore(ctx, c.db)
		if err != nil {
			return nil, err
		}
		store = pg
	default:
		fs, err := universe.NewFileStore(c.cfg.Universe.DataDir)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	return universe.NewRegistry(defs, store, c.log)
}

// cache returns the Redis JSON cache (no-op when Redis is disabled)
func (c *core) cache() *redis.Cache {
	return redis.NewCache(c.redis, cachePrefix)
}

// limiter returns the shared upstream rate limiter
func (c *core) limiter() *redis.RateLimiter {
	return redis.NewRateLimiter(c.redis, cachePrefix)
}

// newService wires quote source, orchestrator and scanner service.
// clock decides the market-hours gate; pass market.AlwaysOpen to scan anytime.
func (c *core) newService(clock contracts.MarketClock) (*scanner.Service, error) {
	s := c.cfg.Scanner

	source, err := provider.New(c.cfg, c.limiter(), c.log)
	if err != nil {
		return nil, err
	}

	cache := scanner.NewCache(s.MinForceScanGap, nil)
	orch, err := scanner.NewOrchestrator(source, c.registry, clock, cache, scanner.Options{
		Thresholds: detector.Thresholds{
			Normal: s.NormalThreshold,
			Strong: s.StrongThreshold,
		},
		MaxSymbolsPerScan: s.MaxSymbolsPerScan,
		MinPrice:          s.MinPrice,
		FetchTimeout:      s.FetchTimeout,
		Backoff: scanner.Backoff{
			Attempts: s.RateLimitRetries + 1,
			Base:     s.RateLimitBackoff,
		},
		Pacer: scanner.NewPacer(s.RequestDelay),
	}, c.log)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	return scanner.NewService(orch, c.registry, c.calendar, s.DefaultUniverse, c.log)
}

// Close releases the store connections
func (c *core) Close() {
	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}
}
