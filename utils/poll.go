package utils

import (
	"context"
	"fmt"
	"time"
)

// WaitFor runs check until it reports done, returns an error, or the timeout
// or ctx expires. check runs once up front, again on every value received
// from wake, and every interval in case a wakeup was missed. wake may be nil.
func WaitFor[T any](ctx context.Context, timeout, interval time.Duration, wake <-chan T, check func() (done bool, err error)) error {
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, fmt.Errorf("timeout after %s", timeout))
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case _, ok := <-wake:
			if !ok {
				wake = nil
			}
		case <-ticker.C:
		}
	}
}
