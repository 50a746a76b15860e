package scanner

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/marketscan/backend/internal/contracts"
)

// Pacer spaces out upstream requests
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a fixed-delay sequencer: one request per delay, no bursts.
// It is shared by every scan of a source so interleaved universes stay inside
// one request budget.
func NewPacer(delay time.Duration) Pacer {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-timer SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff retries rate-limited fetches with a linear delay (base × attempt).
// Every other error is returned on the first attempt.
type Backoff struct {
	Attempts int           // total attempts, including the first
	Base     time.Duration // delay before retry n is Base*n
	Sleep    SleepFunc
}

// Delay returns the wait before the given retry (1-based)
func (b Backoff) Delay(retry int) time.Duration {
	return b.Base * time.Duration(retry)
}

// Do runs fn until it succeeds, fails with a non rate-limit error, or the
// attempts are exhausted. onRetry is called before each wait.
func (b Backoff) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(retry int, delay time.Duration, err error)) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, contracts.ErrRateLimited) || attempt == attempts {
			return err
		}

		delay := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
	return err
}
