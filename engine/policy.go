package engine

import (
	"time"

	"github.com/projecteru2/bootenv/config"
)

// RetryPolicy decides whether, and after how long, the engine reconnects
// after the session was lost or could not be established.
// attempt starts at 1 for the first retry.
type RetryPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// NeverRetry keeps the engine disconnected after the first loss.
type NeverRetry struct{}

func (NeverRetry) Next(int) (time.Duration, bool) { return 0, false }

// FixedRetry retries up to MaxAttempts times, Interval apart.
type FixedRetry struct {
	MaxAttempts int
	Interval    time.Duration
}

func (p FixedRetry) Next(attempt int) (time.Duration, bool) {
	if attempt > p.MaxAttempts {
		return 0, false
	}
	return p.Interval, true
}

// PolicyFromConfig maps the reconnect section to a policy.
func PolicyFromConfig(c config.ReconnectConfig) RetryPolicy {
	if c.MaxAttempts <= 0 {
		return NeverRetry{}
	}
	return FixedRetry{MaxAttempts: c.MaxAttempts, Interval: c.Interval}
}
