package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/config"
	"github.com/projecteru2/bootenv/types"
)

// Engine keeps a Store in sync with the boot environment service and
// coordinates activations against it.
type Engine struct {
	connect bootenv.Connector
	policy  RetryPolicy
	store   *Store
	fails   failures

	// current is the live session shared with Activate; nil while disconnected.
	current atomic.Pointer[session]
}

type session struct{ bootenv.Backend }

// New creates an Engine. Nothing happens until Run is called.
func New(conf *config.Config, connect bootenv.Connector, policy RetryPolicy) *Engine {
	if policy == nil {
		policy = NeverRetry{}
	}
	fails := make(failures, conf.ErrorBuffer)
	return &Engine{
		connect: connect,
		policy:  policy,
		store:   newStore(conf.EventBuffer, conf.ReloadDebounce, fails),
		fails:   fails,
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() *Snapshot { return e.store.Snapshot() }

// Subscribe streams every change applied by the reducer.
func (e *Engine) Subscribe(bufSize int) *Subscription { return e.store.Subscribe(bufSize) }

// Unsubscribe stops a subscription and closes its channel.
func (e *Engine) Unsubscribe(sub *Subscription) { e.store.Unsubscribe(sub) }

// Errors yields connect, watch, load and activation failures. Failures are
// dropped when the channel is not drained.
func (e *Engine) Errors() <-chan Failure { return e.fails }

// Run connects, starts the listeners and the reducer, and blocks until ctx
// is cancelled. Losing the session is not an error: the state goes
// Disconnected and the retry policy decides whether to connect again.
func (e *Engine) Run(ctx context.Context) error {
	logger := log.WithFunc("engine.Run")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.store.Run(ctx)
	}()
	defer wg.Wait()

	attempt := 0
	for {
		if e.runSession(ctx) {
			attempt = 0
		}
		if ctx.Err() != nil {
			return nil
		}
		attempt++
		delay, ok := e.policy.Next(attempt)
		if !ok {
			logger.Warnf(ctx, "no session, not reconnecting")
			<-ctx.Done()
			return nil
		}
		logger.Infof(ctx, "reconnecting in %s (attempt %d)", delay, attempt)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runSession connects once and watches until the session ends. It reports
// whether a session was established.
func (e *Engine) runSession(ctx context.Context) bool {
	logger := log.WithFunc("engine.runSession")

	e.store.post(ctx, control{kind: ctlConnecting})
	backend, err := e.connect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf(ctx, err, "connect to boot environment service")
			e.fails.report(ctx, OpConnect, "", err)
		}
		e.store.post(ctx, control{kind: ctlDisconnected})
		return false
	}
	logger.Infof(ctx, "connected via %s as %s", backend.Type(), backend.UniqueName())
	e.current.Store(&session{backend})
	e.store.post(ctx, control{kind: ctlConnected, backend: backend})

	err = backend.Watch(ctx, e.store.Emit)
	switch {
	case ctx.Err() != nil:
	case errors.Is(err, bootenv.ErrStreamClosed):
		logger.Warnf(ctx, "signal stream closed, session lost")
	default:
		// No live updates, but the session still serves loads and activations.
		if err != nil {
			logger.Errorf(ctx, err, "live updates unavailable")
			e.fails.report(ctx, OpWatch, "", err)
		}
		<-ctx.Done()
	}

	e.current.Store(nil)
	if err := backend.Close(); err != nil {
		logger.Debugf(ctx, "close session: %v", err)
	}
	e.store.post(ctx, control{kind: ctlDisconnected, backend: backend})
	return true
}

// Activate asks the service to boot id next and then reloads everything, so
// the local view converges on the service's answer either way. Command
// failures are logged and sent to Errors, never returned; local flags are
// never changed optimistically.
func (e *Engine) Activate(ctx context.Context, id string, temporary bool) {
	logger := log.WithFunc("engine.Activate")

	sess := e.current.Load()
	if sess == nil {
		logger.Errorf(ctx, ErrNotConnected, "activate boot environment %s", id)
		e.fails.report(ctx, OpActivate, id, ErrNotConnected)
		return
	}

	switch err := sess.Activate(ctx, id, temporary); {
	case err != nil:
		logger.Errorf(ctx, err, "activate boot environment %s", id)
		e.fails.report(ctx, OpActivate, id, err)
	case temporary:
		logger.Infof(ctx, "temporarily activated boot environment %s", id)
	default:
		logger.Infof(ctx, "activated boot environment %s", id)
	}

	_ = e.store.Emit(ctx, types.Modified())
}
