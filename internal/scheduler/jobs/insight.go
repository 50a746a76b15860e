package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/marketscan/backend/pkg/logger"
)

// InsightRefresher regenerates the cached daily insight
type InsightRefresher interface {
	RefreshDaily(ctx context.Context, lang string) error
}

// InsightRefreshJob keeps the daily market insight warm
type InsightRefreshJob struct {
	insight InsightRefresher
	langs   []string
	logger  *logger.Logger
}

// NewInsightRefreshJob creates the hourly insight job
func NewInsightRefreshJob(r InsightRefresher, langs []string, log *logger.Logger) *InsightRefreshJob {
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	return &InsightRefreshJob{
		insight: r,
		langs:   langs,
		logger:  log.Component("insight-refresh"),
	}
}

// Name returns the job name
func (j *InsightRefreshJob) Name() string {
	return "insight_refresh"
}

// Schedule returns the cron schedule (top of every hour)
func (j *InsightRefreshJob) Schedule() string {
	return "0 0 * * * *"
}

// MaxRetries keeps one quick retry, the LLM quota is small
func (j *InsightRefreshJob) MaxRetries() int {
	return 1
}

// Run refreshes every configured language
func (j *InsightRefreshJob) Run(ctx context.Context) error {
	var failed []string
	for _, lang := range j.langs {
		if err := j.insight.RefreshDaily(ctx, lang); err != nil {
			j.logger.WithError(err).WithField("lang", lang).Warn("Insight refresh failed")
			failed = append(failed, lang)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("insight refresh failed for %v", failed)
	}
	return nil
}
