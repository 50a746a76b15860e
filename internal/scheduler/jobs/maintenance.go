package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/marketscan/backend/pkg/logger"
)

// HistoryPruner deletes scan history older than a cutoff
type HistoryPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// HistoryCleanupJob trims the alert history table
type HistoryCleanupJob struct {
	history   HistoryPruner
	retention time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewHistoryCleanupJob creates a new history cleanup job
func NewHistoryCleanupJob(h HistoryPruner, retention time.Duration, log *logger.Logger) *HistoryCleanupJob {
	return &HistoryCleanupJob{
		history:   h,
		retention: retention,
		now:       time.Now,
		logger:    log.Component("history-cleanup"),
	}
}

// Name returns the job name
func (j *HistoryCleanupJob) Name() string {
	return "history_cleanup"
}

// Schedule returns the cron schedule (daily, 04:30 server time)
func (j *HistoryCleanupJob) Schedule() string {
	return "0 30 4 * * *"
}

// Run executes the history cleanup
func (j *HistoryCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled history cleanup")

	cutoff := j.now().Add(-j.retention)
	count, err := j.history.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("History cleanup completed")
	}

	return nil
}
