package scanner

import (
	"sync"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
)

// entry is an immutable snapshot of one universe's cache state.
// Writers swap the pointer; nothing mutates an entry after publication.
type entry struct {
	alerts     []contracts.Alert
	lastScan   time.Time // zero until the first successful scan
	inProgress bool
}

// View is what readers get back from the cache
type View struct {
	UniverseID     string            `json:"universeId"`
	Alerts         []contracts.Alert `json:"alerts"`
	LastScan       *time.Time        `json:"lastScan"`
	Stale          bool              `json:"stale"`
	AgeMinutes     *int              `json:"ageMinutes"`
	ScanInProgress bool              `json:"scanInProgress"`
	Scanned        bool              `json:"scanned"`
}

// Cache holds the latest alert set per universe
// ⭐ SSOT: the only shared mutable scan state
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	minGap  time.Duration
	now     func() time.Time
}

// NewCache creates a cache whose staleness threshold is minGap
func NewCache(minGap time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]*entry),
		minGap:  minGap,
		now:     now,
	}
}

// MinGap returns the staleness / forced-scan threshold
func (c *Cache) MinGap() time.Duration {
	return c.minGap
}

func (c *Cache) get(universeID string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[universeID]
}

// Read never blocks on I/O. A universe that was never scanned comes back
// with Scanned=false, an empty alert list, nil LastScan and Stale=true.
func (c *Cache) Read(universeID string) View {
	e := c.get(universeID)

	view := View{
		UniverseID: universeID,
		Alerts:     []contracts.Alert{},
		Stale:      true,
	}
	if e == nil {
		return view
	}

	view.ScanInProgress = e.inProgress
	if e.lastScan.IsZero() {
		return view
	}

	lastScan := e.lastScan
	age := ageMinutes(c.now().Sub(lastScan))
	view.Alerts = e.alerts
	view.LastScan = &lastScan
	view.AgeMinutes = &age
	view.Stale = time.Duration(age)*time.Minute >= c.minGap
	view.Scanned = true
	return view
}

// LastScan returns the time of the last successful scan
func (c *Cache) LastScan(universeID string) (time.Time, bool) {
	e := c.get(universeID)
	if e == nil || e.lastScan.IsZero() {
		return time.Time{}, false
	}
	return e.lastScan, true
}

// store publishes a completed scan: alerts and timestamp change together
// and the in-progress flag is cleared in the same swap.
func (c *Cache) store(universeID string, alerts []contracts.Alert, scanTime time.Time) {
	next := &entry{alerts: alerts, lastScan: scanTime}

	c.mu.Lock()
	c.entries[universeID] = next
	c.mu.Unlock()
}

// setInProgress flips the flag on a copy of the current entry
func (c *Cache) setInProgress(universeID string, inProgress bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &entry{inProgress: inProgress}
	if cur := c.entries[universeID]; cur != nil {
		next.alerts = cur.alerts
		next.lastScan = cur.lastScan
	}
	c.entries[universeID] = next
}

// Hydrate seeds an entry from an external snapshot unless the cache
// already holds a scan at least as recent. Reports whether it applied.
func (c *Cache) Hydrate(universeID string, alerts []contracts.Alert, scanTime time.Time) bool {
	if scanTime.IsZero() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.entries[universeID]
	if cur != nil && !cur.lastScan.Before(scanTime) {
		return false
	}
	next := &entry{alerts: alerts, lastScan: scanTime}
	if cur != nil {
		next.inProgress = cur.inProgress
	}
	c.entries[universeID] = next
	return true
}

// ageMinutes floors an age to whole minutes, never negative
func ageMinutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
