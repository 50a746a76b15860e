package scanner

import (
	"context"
	"time"

	"github.com/wonny/marketscan/backend/internal/contracts"
	"github.com/wonny/marketscan/backend/pkg/logger"
	"github.com/wonny/marketscan/backend/pkg/redis"
)

// snapshot is the mirrored form of one completed scan
type snapshot struct {
	ScanID     string            `json:"scanId"`
	UniverseID string            `json:"universeId"`
	Alerts     []contracts.Alert `json:"alerts"`
	ScanTime   time.Time         `json:"scanTime"`
}

// Mirror copies completed scans to Redis so a restart can serve them
// before its own first scan. A disabled cache turns it into a no-op.
type Mirror struct {
	cache   *redis.Cache
	logger  *logger.Logger
	timeout time.Duration
}

// NewMirror creates a snapshot mirror
func NewMirror(cache *redis.Cache, log *logger.Logger) *Mirror {
	return &Mirror{
		cache:   cache,
		logger:  log.Component("scan-mirror"),
		timeout: 3 * time.Second,
	}
}

// Save is a scan subscriber
func (m *Mirror) Save(result Result) {
	if !m.cache.Enabled() || result.LastScan == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	snap := snapshot{
		ScanID:     result.ScanID,
		UniverseID: result.UniverseID,
		Alerts:     result.Alerts,
		ScanTime:   *result.LastScan,
	}
	if err := m.cache.Set(ctx, redis.ScanSnapshotKey(result.UniverseID), snap, redis.TTLSnapshot); err != nil {
		m.logger.WithError(err).WithField("universe", result.UniverseID).Warn("Failed to mirror scan snapshot")
	}
}

// Hydrate seeds the cache from mirrored snapshots; returns how many applied
func (m *Mirror) Hydrate(ctx context.Context, cache *Cache, universeIDs []string) int {
	if !m.cache.Enabled() {
		return 0
	}

	applied := 0
	for _, id := range universeIDs {
		var snap snapshot
		found, err := m.cache.Get(ctx, redis.ScanSnapshotKey(id), &snap)
		if err != nil {
			m.logger.WithError(err).WithField("universe", id).Warn("Failed to read scan snapshot")
			continue
		}
		if !found {
			continue
		}
		if snap.Alerts == nil {
			snap.Alerts = []contracts.Alert{}
		}
		if cache.Hydrate(id, snap.Alerts, snap.ScanTime) {
			applied++
		}
	}

	if applied > 0 {
		m.logger.WithField("universes", applied).Info("Cache hydrated from snapshots")
	}
	return applied
}
