package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/internal/detector"
	"github.com/wonny/marketscan/backend/internal/market"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	// Tuesday 10:00 New York
	return &fakeClock{now: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// step is one scripted answer of the fake source
type step struct {
	price, prev float64
	err         error
}

type fakeSource struct {
	mu      sync.Mutex
	script  map[string][]step
	calls   map[string]int
	gate    chan struct{} // when set, every fetch waits on it
	started chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{script: make(map[string][]step), calls: make(map[string]int)}
}

func (f *fakeSource) on(symbol string, steps ...step) *fakeSource {
	f.script[symbol] = steps
	return f
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchQuote(ctx context.Context, symbol string) (contracts.Quote, error) {
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	n := f.calls[symbol]
	f.calls[symbol]++
	steps := f.script[symbol]
	f.mu.Unlock()

	if len(steps) == 0 {
		return contracts.Quote{}, fmt.Errorf("%s: %w", symbol, contracts.ErrNotFound)
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	s := steps[n]
	if s.err != nil {
		return contracts.Quote{}, s.err
	}
	return contracts.NewQuote(symbol, s.price, s.prev, 1000, time.Time{})
}

func (f *fakeSource) Calls(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

func (f *fakeSource) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeUniverses struct {
	mu      sync.Mutex
	symbols map[string][]string
}

func newFakeUniverses() *fakeUniverses {
	return &fakeUniverses{symbols: map[string][]string{
		"TECH_USA": {"NVDA", "AMD", "AAPL"},
		"SP100":    {"AAPL", "MSFT"},
	}}
}

func (u *fakeUniverses) ListSymbols(_ context.Context, id string) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	syms, ok := u.symbols[id]
	if !ok {
		return nil, contracts.ErrUnknownUniverse
	}
	return append([]string(nil), syms...), nil
}

func (u *fakeUniverses) Exists(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.symbols[id]
	return ok
}

func (u *fakeUniverses) Update(_ context.Context, id string, symbols []string) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.symbols[id] = symbols
	return symbols, nil
}

// fakeMarket is open unless closed is set
type fakeMarket struct {
	mu     sync.Mutex
	closed bool
}

func (m *fakeMarket) IsOpen(time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *fakeMarket) Status(t time.Time) market.Status {
	return market.Status{IsOpen: m.IsOpen(t), Timezone: "America/New_York"}
}

func (m *fakeMarket) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *sleepRecorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type fixture struct {
	clock    *fakeClock
	source   *fakeSource
	lister   *fakeUniverses
	market   *fakeMarket
	sleeps   *sleepRecorder
	cache    *Cache
	orch     *Orchestrator
	minGap   time.Duration
	minPrice float64
}

func newFixture(source *fakeSource) *fixture {
	f := &fixture{
		clock:  newFakeClock(),
		source: source,
		lister: newFakeUniverses(),
		market: &fakeMarket{},
		sleeps: &sleepRecorder{},
		minGap: 3 * time.Minute,
	}
	f.cache = NewCache(f.minGap, f.clock.Now)

	orch, err := NewOrchestrator(f.source, f.lister, f.market, f.cache, Options{
		Thresholds:        detector.DefaultThresholds(),
		MaxSymbolsPerScan: 100,
		MinPrice:          5,
		FetchTimeout:      time.Second,
		Backoff:           Backoff{Attempts: 3, Base: 100 * time.Millisecond, Sleep: f.sleeps.Sleep},
		Pacer:             NewPacer(0),
		Now:               f.clock.Now,
	}, logger.Nop())
	if err != nil {
		panic(err)
	}
	f.orch = orch
	return f
}

// techSource answers the three TECH_USA symbols: NVDA +6 %, AMD -3.5 %, AAPL +0.5 %
func techSource() *fakeSource {
	return newFakeSource().
		on("NVDA", step{price: 106, prev: 100}).
		on("AMD", step{price: 96.5, prev: 100}).
		on("AAPL", step{price: 100.5, prev: 100})
}

// waiting returns how many callers joined the universe's in-flight scan
func (o *Orchestrator) waiting(universeID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.flights[universeID]; ok {
		return f.waiters
	}
	return 0
}
