// Package backoff provides the fixed-interval wait used when the remote
// data source throttles requests. The interval is constant rather than
// exponential: the failure mode is a rate limiter with a known recovery
// window, not lock contention.
package backoff

import (
	"context"
	"time"
)

const (
	// DefaultInterval is the wait between retries of a throttled operation.
	DefaultInterval = 5 * time.Minute

	// pollGranularity bounds how long a cancellation request can go
	// unnoticed inside a wait.
	pollGranularity = time.Second
)

// Controller waits out throttling windows. The zero value is not usable;
// construct with New.
type Controller struct {
	interval time.Duration
	poll     time.Duration
}

// New returns a Controller with the given wait interval. A non-positive
// interval falls back to DefaultInterval.
func New(interval time.Duration) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{interval: interval, poll: pollGranularity}
}

// Interval returns the configured wait interval.
func (c *Controller) Interval() time.Duration {
	return c.interval
}

// Wait blocks for the full interval, checking the context at one-second
// granularity. It reports whether the wait was cut short by cancellation,
// so callers abandon their retry loop instead of retrying into a shutdown.
func (c *Controller) Wait(ctx context.Context) (cancelled bool) {
	deadline := time.Now().Add(c.interval)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		slice := c.poll
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-ctx.Done():
			return true
		case <-time.After(slice):
		}
	}
}
