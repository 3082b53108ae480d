package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/config"
	"github.com/projecteru2/bootenv/types"
)

var errBoom = errors.New("boom")

func mkEnv(name string, created int64) *types.BootEnvironment {
	return &types.BootEnvironment{ID: "/be/" + name, Name: name, Created: created}
}

type activation struct {
	id        string
	temporary bool
}

// fakeBackend plays the service: Load returns copies of envs, Watch forwards
// whatever the test pushes on signals until lost is closed.
type fakeBackend struct {
	mu          sync.Mutex
	envs        []*types.BootEnvironment
	loadErr     error
	loads       int
	activateErr error
	activated   []activation
	onActivate  func(envs []*types.BootEnvironment, id string, temporary bool)
	watchErr    error

	signals chan types.Event
	lost    chan struct{}
	closed  atomic.Bool
}

var _ bootenv.Backend = (*fakeBackend)(nil)

func newFakeBackend(envs ...*types.BootEnvironment) *fakeBackend {
	return &fakeBackend{
		envs:    envs,
		signals: make(chan types.Event, 16),
		lost:    make(chan struct{}),
	}
}

func (f *fakeBackend) Type() string       { return "fake" }
func (f *fakeBackend) UniqueName() string { return ":1.42" }

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeBackend) Load(context.Context) ([]*types.BootEnvironment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]*types.BootEnvironment, 0, len(f.envs))
	for _, env := range f.envs {
		c := *env
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeBackend) Activate(_ context.Context, id string, temporary bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, activation{id: id, temporary: temporary})
	if f.onActivate != nil {
		f.onActivate(f.envs, id, temporary)
	}
	return f.activateErr
}

func (f *fakeBackend) Watch(ctx context.Context, emit bootenv.Emit) error {
	if f.watchErr != nil {
		return f.watchErr
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.lost:
			return bootenv.ErrStreamClosed
		case ev := <-f.signals:
			if err := emit(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (f *fakeBackend) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeBackend) setEnvs(envs ...*types.BootEnvironment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envs = envs
}

// connectTo returns a connector that hands out backends in order, failing
// with errBoom once they run out. It counts every attempt.
func connectTo(attempts *atomic.Int32, backends ...*fakeBackend) bootenv.Connector {
	return func(context.Context) (bootenv.Backend, error) {
		n := int(attempts.Add(1)) - 1
		if n >= len(backends) || backends[n] == nil {
			return nil, errBoom
		}
		return backends[n], nil
	}
}

func testConfig() *config.Config {
	conf := config.DefaultConfig()
	conf.EventBuffer = 8
	conf.ErrorBuffer = 8
	return conf
}

// startEngine runs eng until the test ends.
func startEngine(t *testing.T, eng *Engine) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return ctx
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func nextFailure(t *testing.T, eng *Engine) Failure {
	t.Helper()
	select {
	case f := <-eng.Errors():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a failure")
		return Failure{}
	}
}
