package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/detector"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// Result is the outcome of one scan attempt
type Result struct {
	ScanID     string            `json:"scanId"`
	UniverseID string            `json:"universeId"`
	Alerts     []contracts.Alert `json:"alerts"`
	LastScan   *time.Time        `json:"lastScan"`
	MarketOpen bool              `json:"marketOpen"`
	Skipped    bool              `json:"skipped"`

	// Symbol accounting, zero for skipped scans
	Requested int           `json:"requested"`
	Fetched   int           `json:"fetched"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Subscriber is told about every completed (non-skipped) scan
type Subscriber func(Result)

// Options tune a scan orchestrator
type Options struct {
	Thresholds        detector.Thresholds
	MaxSymbolsPerScan int
	MinPrice          float64
	FetchTimeout      time.Duration
	Backoff           Backoff
	Pacer             Pacer
	Now               func() time.Time
}

// flight is one in-progress scan other callers can wait on
type flight struct {
	done    chan struct{}
	result  Result
	err     error
	waiters int // joined callers, guarded by Orchestrator.mu
}

// Orchestrator runs scans: market gate, paced sequential fetch, detection,
// atomic cache replace and subscriber notification.
// ⭐ SSOT: at most one in-flight scan per universe
type Orchestrator struct {
	source contracts.QuoteSource
	lister contracts.SymbolLister
	clock  contracts.MarketClock
	cache  *Cache
	opts   Options
	logger *logger.Logger

	mu      sync.Mutex
	flights map[string]*flight

	subMu       sync.RWMutex
	subscribers []Subscriber

	// completed results awaiting delivery, oldest first
	queueMu    sync.Mutex
	pending    []Result
	delivering bool
}

// NewOrchestrator wires a scan orchestrator
func NewOrchestrator(source contracts.QuoteSource, lister contracts.SymbolLister, clock contracts.MarketClock,
	cache *Cache, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSymbolsPerScan <= 0 {
		return nil, fmt.Errorf("max symbols per scan must be positive, got %d", opts.MaxSymbolsPerScan)
	}
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}

	return &Orchestrator{
		source:  source,
		lister:  lister,
		clock:   clock,
		cache:   cache,
		opts:    opts,
		logger:  log.Component("scanner"),
		flights: make(map[string]*flight),
	}, nil
}

// Subscribe registers a completion callback
func (o *Orchestrator) Subscribe(fn Subscriber) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// InFlight reports whether a scan for the universe is running
func (o *Orchestrator) InFlight(universeID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.flights[universeID]
	return ok
}

// Scan runs a scan synchronously, or joins the one already in flight.
// Leaving ctx early stops the wait, never the scan itself.
func (o *Orchestrator) Scan(ctx context.Context, universeID string) (Result, error) {
	o.mu.Lock()
	if f, ok := o.flights[universeID]; ok {
		f.waiters++
		waiters := f.waiters
		o.mu.Unlock()
		o.logger.WithFields(map[string]interface{}{
			"universe": universeID,
			"waiters":  waiters,
		}).Debug("Joining in-flight scan")
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	f := o.reserve(universeID)
	o.mu.Unlock()

	o.run(ctx, universeID, f)
	return f.result, f.err
}

// Quote fetches a single symbol outside any scan, with the per-call
// timeout and rate-limit backoff scans use.
func (o *Orchestrator) Quote(ctx context.Context, symbol string) (contracts.Quote, error) {
	return o.fetchOne(ctx, o.logger.WithField("symbol", symbol), symbol)
}

// Trigger starts a background scan unless one is already in flight.
// Failures are only logged.
func (o *Orchestrator) Trigger(universeID string) bool {
	o.mu.Lock()
	if _, ok := o.flights[universeID]; ok {
		o.mu.Unlock()
		return false
	}
	f := o.reserve(universeID)
	o.mu.Unlock()

	go o.run(context.Background(), universeID, f)
	return true
}

// ForceScan is the user-triggered refresh: blocking, and rejected with a
// TooSoonError while a scan is in flight or the last one is younger than
// the minimum gap.
func (o *Orchestrator) ForceScan(ctx context.Context, universeID string) (Result, error) {
	minGap := o.cache.MinGap()

	o.mu.Lock()
	if _, ok := o.flights[universeID]; ok {
		o.mu.Unlock()
		return Result{}, &contracts.TooSoonError{UniverseID: universeID, RetryAfter: minGap}
	}
	if last, ok := o.cache.LastScan(universeID); ok {
		age := time.Duration(ageMinutes(o.opts.Now().Sub(last))) * time.Minute
		if age < minGap {
			o.mu.Unlock()
			return Result{}, &contracts.TooSoonError{UniverseID: universeID, RetryAfter: minGap - age}
		}
	}
	f := o.reserve(universeID)
	o.mu.Unlock()

	o.run(ctx, universeID, f)
	return f.result, f.err
}

// reserve registers a flight; o.mu must be held
func (o *Orchestrator) reserve(universeID string) *flight {
	f := &flight{done: make(chan struct{})}
	o.flights[universeID] = f
	return f
}

// run executes the flight and releases it
func (o *Orchestrator) run(ctx context.Context, universeID string, f *flight) {
	defer func() {
		if r := recover(); r != nil {
			f.result = Result{UniverseID: universeID}
			f.err = fmt.Errorf("scan %s panicked: %v", universeID, r)
			o.cache.setInProgress(universeID, false)
			o.logger.WithField("universe", universeID).Errorf("Scan panicked: %v", r)
		}

		o.mu.Lock()
		delete(o.flights, universeID)
		o.mu.Unlock()
		close(f.done)
	}()

	// no mid-scan cancellation: callers may stop waiting, the scan finishes
	f.result, f.err = o.execute(context.WithoutCancel(ctx), universeID)

	if f.err != nil {
		o.logger.WithError(f.err).WithField("universe", universeID).Error("Scan failed, keeping cached alerts")
		return
	}
	if !f.result.Skipped {
		o.notify(f.result)
	}
}

func (o *Orchestrator) execute(ctx context.Context, universeID string) (Result, error) {
	start := o.opts.Now()
	log := o.logger.WithField("universe", universeID)

	// 1. Market-hours gate: closed means the cache entry is left untouched
	if o.clock != nil && !o.clock.IsOpen(start) {
		view := o.cache.Read(universeID)
		log.Info("Market closed, skipping scan")
		return Result{
			UniverseID: universeID,
			Alerts:     view.Alerts,
			LastScan:   view.LastScan,
			MarketOpen: false,
			Skipped:    true,
		}, nil
	}

	o.cache.setInProgress(universeID, true)

	// 2. Resolve symbols
	symbols, err := o.lister.ListSymbols(ctx, universeID)
	if err != nil {
		o.cache.setInProgress(universeID, false)
		return Result{UniverseID: universeID}, fmt.Errorf("resolve symbols for %s: %w", universeID, err)
	}
	if len(symbols) > o.opts.MaxSymbolsPerScan {
		symbols = symbols[:o.opts.MaxSymbolsPerScan]
	}

	scanID := uuid.NewString()
	log = log.WithField("scan_id", scanID)
	log.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"source":  o.source.Name(),
	}).Info("Scan started")

	// 3. Paced sequential fetch
	quotes, failed, upstreamFailures, err := o.fetchAll(ctx, log, symbols)
	if err != nil {
		o.cache.setInProgress(universeID, false)
		return Result{UniverseID: universeID, ScanID: scanID}, err
	}
	if len(symbols) > 0 && upstreamFailures == len(symbols) {
		o.cache.setInProgress(universeID, false)
		return Result{UniverseID: universeID, ScanID: scanID},
			fmt.Errorf("%w: all %d fetches for %s failed", contracts.ErrUpstreamUnavailable, len(symbols), universeID)
	}

	// 4. Detect and publish
	scanTime := o.opts.Now()
	alerts := detector.Detect(quotes, o.opts.Thresholds, universeID, scanTime)
	o.cache.store(universeID, alerts, scanTime)

	result := Result{
		ScanID:     scanID,
		UniverseID: universeID,
		Alerts:     alerts,
		LastScan:   &scanTime,
		MarketOpen: true,
		Requested:  len(symbols),
		Fetched:    len(quotes),
		Failed:     failed,
		Duration:   scanTime.Sub(start),
	}

	log.WithFields(map[string]interface{}{
		"alerts":   len(alerts),
		"high":     contracts.CountHigh(alerts),
		"fetched":  result.Fetched,
		"failed":   result.Failed,
		"duration": result.Duration.String(),
	}).Info("Scan completed")

	return result, nil
}

// fetchAll fetches symbols one at a time. Per-symbol failures are skipped;
// a misconfigured source aborts the whole scan.
func (o *Orchestrator) fetchAll(ctx context.Context, log *logger.Logger, symbols []string) (quotes []contracts.Quote, failed, upstreamFailures int, err error) {
	quotes = make([]contracts.Quote, 0, len(symbols))

	for _, symbol := range symbols {
		if err := o.opts.Pacer.Wait(ctx); err != nil {
			return nil, failed, upstreamFailures, fmt.Errorf("pacer: %w", err)
		}

		q, err := o.fetchOne(ctx, log, symbol)
		switch {
		case err == nil:
			if q.BelowFloor(o.opts.MinPrice) {
				log.WithField("symbol", symbol).Debug("Below minimum price, skipped")
				continue
			}
			quotes = append(quotes, q)
		case errors.Is(err, contracts.ErrMisconfigured):
			return nil, failed, upstreamFailures, fmt.Errorf("quote source %s: %w", o.source.Name(), err)
		case errors.Is(err, contracts.ErrRateLimited), errors.Is(err, contracts.ErrTransient), errors.Is(err, context.DeadlineExceeded):
			failed++
			upstreamFailures++
			log.WithError(err).WithField("symbol", symbol).Warn("Fetch failed, symbol skipped")
		default:
			failed++
			log.WithError(err).WithField("symbol", symbol).Debug("No usable quote, symbol skipped")
		}
	}

	return quotes, failed, upstreamFailures, nil
}

// fetchOne applies the per-call deadline and the rate-limit backoff
func (o *Orchestrator) fetchOne(ctx context.Context, log *logger.Logger, symbol string) (contracts.Quote, error) {
	var q contracts.Quote
	err := o.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
		defer cancel()

		var err error
		q, err = o.source.FetchQuote(callCtx, symbol)
		return err
	}, func(retry int, delay time.Duration, err error) {
		log.WithFields(map[string]interface{}{
			"symbol": symbol,
			"retry":  retry,
			"delay":  delay.String(),
		}).Warn("Rate limited, backing off")
	})
	return q, err
}

// notify queues the result for delivery off the scan path. One drain
// goroutine at a time delivers results in completion order, so subscribers
// never see an older scan after a newer one.
func (o *Orchestrator) notify(result Result) {
	o.queueMu.Lock()
	o.pending = append(o.pending, result)
	if o.delivering {
		o.queueMu.Unlock()
		return
	}
	o.delivering = true
	o.queueMu.Unlock()

	go o.drain()
}

// drain delivers queued results to every subscriber in registration order.
// A failing subscriber is logged and does not stop the others.
func (o *Orchestrator) drain() {
	for {
		o.queueMu.Lock()
		if len(o.pending) == 0 {
			o.delivering = false
			o.queueMu.Unlock()
			return
		}
		result := o.pending[0]
		o.pending = o.pending[1:]
		o.queueMu.Unlock()

		o.subMu.RLock()
		subs := make([]Subscriber, len(o.subscribers))
		copy(subs, o.subscribers)
		o.subMu.RUnlock()

		for i, fn := range subs {
			o.deliver(i, fn, result)
		}
	}
}

func (o *Orchestrator) deliver(i int, fn Subscriber, result Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(map[string]interface{}{
				"subscriber": i,
				"universe":   result.UniverseID,
			}).Errorf("Subscriber panicked: %v", r)
		}
	}()
	fn(result)
}
