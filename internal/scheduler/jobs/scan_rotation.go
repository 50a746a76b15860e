package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/marketscan/backend/internal/scanner"
	"github.com/wonny/marketscan/backend/pkg/logger"
)

// Scanner is the slice of the scanner service the rotation drives
type Scanner interface {
	Scan(ctx context.Context, universeID string) (scanner.Result, error)
	ActiveUniverse() string
}

// ScanRotationJob scans one universe per tick, round-robin
// ⭐ SSOT: periodic scanning is driven by this job only
type ScanRotationJob struct {
	scanner  Scanner
	rotation *Rotation
	interval time.Duration
	logger   *logger.Logger
}

// NewScanRotationJob creates the periodic scan job
func NewScanRotationJob(s Scanner, rotation *Rotation, interval time.Duration, log *logger.Logger) *ScanRotationJob {
	return &ScanRotationJob{
		scanner:  s,
		rotation: rotation,
		interval: interval,
		logger:   log.Component("scan-rotation"),
	}
}

// Name returns the job name
func (j *ScanRotationJob) Name() string {
	return "scan_rotation"
}

// Schedule returns the cron schedule (fixed interval)
func (j *ScanRotationJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.interval)
}

// MaxRetries disables scheduler retries, the next tick retries instead
func (j *ScanRotationJob) MaxRetries() int {
	return 0
}

// Run scans the next universe in the rotation
func (j *ScanRotationJob) Run(ctx context.Context) error {
	universeID := j.rotation.Next()

	result, err := j.scanner.Scan(ctx, universeID)
	if err != nil {
		return fmt.Errorf("scan %s: %w", universeID, err)
	}

	if result.Skipped {
		j.logger.WithField("universe", universeID).Debug("Market closed, rotation tick skipped")
		return nil
	}

	j.logger.WithFields(map[string]interface{}{
		"universe": universeID,
		"alerts":   len(result.Alerts),
		"next":     j.rotation.IDs()[j.rotation.Cursor()],
	}).Info("Rotation scan completed")
	return nil
}

// Warmup runs the eager synchronous scan of the active universe before the
// scheduler starts. A failure is logged and left to the first tick.
func (j *ScanRotationJob) Warmup(ctx context.Context) {
	universeID := j.scanner.ActiveUniverse()

	if _, err := j.scanner.Scan(ctx, universeID); err != nil {
		j.logger.WithError(err).WithField("universe", universeID).Warn("Warmup scan failed")
		return
	}
	j.logger.WithField("universe", universeID).Info("Warmup scan completed")
}
