package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrBusy is returned by Acquire when another holder owns the lock.
var ErrBusy = errors.New("lock is held by another process")

// Locker is a non-blocking mutual exclusion primitive.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Acquire takes l without blocking and returns the function that releases
// it. It fails with ErrBusy when the lock is taken.
func Acquire(ctx context.Context, l Locker) (release func(), err error) {
	ok, err := l.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("try lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() { _ = l.Unlock(context.WithoutCancel(ctx)) }, nil
}
