package flock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/bootenv/lock"
)

func TestTryLock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watch.lock")
	a, b := New(path), New(path)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a Lock is not reentrant")

	require.NoError(t, a.Unlock(ctx))
	ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock(ctx))
	require.NoError(t, b.Unlock(ctx))
}

func TestTryLock_OneWinner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.lock")
	l := New(path)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.TryLock(context.Background())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	require.NoError(t, l.Unlock(context.Background()))
}

func TestHolder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watch.lock")
	a, b := New(path), New(path)

	_, err := b.Holder()
	assert.ErrorIs(t, err, os.ErrNotExist)

	ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	pid, err := b.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, a.Unlock(ctx))
	_, err = b.Holder()
	assert.Error(t, err)
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watch.lock")

	release, err := lock.Acquire(ctx, New(path))
	require.NoError(t, err)

	second := New(path)
	_, err = lock.Acquire(ctx, second)
	assert.ErrorIs(t, err, lock.ErrBusy)
	pid, err := second.Holder()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	release()
	release2, err := lock.Acquire(ctx, New(path))
	require.NoError(t, err)
	release2()
}
