package flock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/projecteru2/bootenv/lock"
)

// compile-time interface check.
var _ lock.Locker = (*Lock)(nil)

// Lock is an flock(2) based lock whose file names the holder: the PID of
// the process holding it is written into the file while locked and cleared
// on Unlock.
type Lock struct {
	path string

	mu   sync.Mutex
	held *flock.Flock // non-nil while locked
}

// New creates a Lock for path. The file is created on first acquisition.
func New(path string) *Lock {
	return &Lock{path: path}
}

// TryLock returns (false, nil) when someone else, including another
// goroutine using the same Lock, holds it.
func (l *Lock) TryLock(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held != nil {
		return false, nil
	}

	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("try flock %s: %w", l.path, err)
	}
	if !ok {
		return false, nil
	}
	if err := writeHolder(fl.Fh(), os.Getpid()); err != nil {
		_ = fl.Unlock()
		return false, fmt.Errorf("record holder in %s: %w", l.path, err)
	}
	l.held = fl
	return true, nil
}

// Unlock clears the holder and releases the lock; unlocking an unheld Lock
// is a no-op.
func (l *Lock) Unlock(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		return nil
	}
	fl := l.held
	l.held = nil

	_ = fl.Fh().Truncate(0)
	if err := fl.Unlock(); err != nil {
		return fmt.Errorf("release flock %s: %w", l.path, err)
	}
	return nil
}

// Holder returns the PID recorded by whoever holds the lock. It fails when
// the lock file is missing or carries no PID, i.e. nobody holds it.
func (l *Lock) Holder() (int, error) {
	data, err := os.ReadFile(l.path) //nolint:gosec // run dir path
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("no holder recorded in %s", l.path)
	}
	return pid, nil
}

func writeHolder(f *os.File, pid int) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0)
	return err
}
