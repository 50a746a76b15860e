package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketscan/backend/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32 // fail this many runs before succeeding
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failures {
		return errors.New("upstream down")
	}
	return nil
}

// retryingJob exposes a per-job retry policy
type retryingJob struct {
	countingJob
	maxRetries int
}

func (j *retryingJob) MaxRetries() int { return j.maxRetries }

func waitForRuns(t *testing.T, s *Scheduler, name string, n int) []JobResult {
	t.Helper()
	var results []JobResult
	require.Eventually(t, func() bool {
		var err error
		results, err = s.GetJobHistory(name)
		return err == nil && len(results) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return results
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "scan_rotation", schedule: "@every 15m"}))
	assert.Error(t, s.AddJob(&countingJob{name: "scan_rotation", schedule: "@every 15m"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "broken", schedule: "not a schedule"}))

	assert.Equal(t, []string{"scan_rotation"}, s.GetAllJobs())
}

func TestScheduler_RemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@hourly"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
}

func TestScheduler_RunJobRetriesWithDefaultPolicy(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))
	job := &countingJob{name: "flaky", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	results := waitForRuns(t, s, "flaky", 1)

	assert.True(t, results[0].Success)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestScheduler_PerJobRetryPolicy(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Millisecond))
	job := &retryingJob{countingJob: countingJob{name: "scan", schedule: "@hourly", failures: 5}, maxRetries: 0}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("scan"))
	results := waitForRuns(t, s, "scan", 1)

	assert.False(t, results[0].Success)
	assert.Equal(t, 1, results[0].Attempts)
	assert.Equal(t, "upstream down", results[0].Error)

	stats := s.GetJobStats()["scan"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestScheduler_StopInterruptsRetryWait(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Hour))
	job := &countingJob{name: "slow-retry", schedule: "@hourly", failures: 10}
	require.NoError(t, s.AddJob(job))
	s.Start()

	require.NoError(t, s.RunJob("slow-retry"))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the retry wait")
	}
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_UnknownJob(t *testing.T) {
	s := New(logger.Nop())
	assert.Error(t, s.RunJob("missing"))
	_, err := s.GetJobHistory("missing")
	assert.Error(t, err)
	_, ok := s.NextRun("missing")
	assert.False(t, ok)
}

func TestScheduler_NextRun(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "tick", schedule: "@every 1h"}))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, ok := s.NextRun("tick")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
