package engine

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/types"
)

type controlKind int

const (
	ctlConnecting controlKind = iota
	ctlConnected
	ctlDisconnected
	ctlLoaded // a reload finished
	ctlFlush  // debounce window elapsed
)

// control carries engine-internal messages to the reducer.
type control struct {
	kind    controlKind
	backend bootenv.Backend
	list    []*types.BootEnvironment
	reload  string
}

// message is one entry of the reducer's inbox: a listener event, or a
// control message when ctl is set.
type message struct {
	event types.Event
	ctl   *control
}

// Store is the single owner of the boot environment collection. Run applies
// messages strictly one at a time in arrival order; everything else only
// sends messages or reads published snapshots.
type Store struct {
	inbox    chan message
	debounce time.Duration
	fails    failures
	notify   *notifier
	snap     atomic.Pointer[Snapshot]
	loads    sync.WaitGroup

	// Owned by the Run goroutine.
	envs         []*types.BootEnvironment
	backend      bootenv.Backend
	state        types.ConnState
	loaded       bool
	seq          uint64
	flushPending bool
}

func newStore(buffer int, debounce time.Duration, fails failures) *Store {
	s := &Store{
		inbox:    make(chan message, buffer),
		debounce: debounce,
		fails:    fails,
		notify:   newNotifier(),
		state:    types.ConnDisconnected,
	}
	s.snap.Store(&Snapshot{State: s.state})
	return s
}

// Emit queues a listener event behind everything already in the inbox.
// It blocks while the inbox is full and fails only once ctx is done.
func (s *Store) Emit(ctx context.Context, ev types.Event) error {
	select {
	case s.inbox <- message{event: ev}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published state. Safe from any goroutine.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

// Subscribe returns a stream of changes. Call Unsubscribe when done.
func (s *Store) Subscribe(bufSize int) *Subscription { return s.notify.subscribe(bufSize) }

// Unsubscribe closes sub.C.
func (s *Store) Unsubscribe(sub *Subscription) { s.notify.unsubscribe(sub) }

// Run processes messages until ctx is cancelled, then waits for in-flight
// reloads to give up.
func (s *Store) Run(ctx context.Context) {
	defer s.loads.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.inbox:
			if m.ctl != nil {
				s.handle(ctx, *m.ctl)
			} else {
				s.apply(ctx, m.event)
			}
		}
	}
}

func (s *Store) apply(ctx context.Context, ev types.Event) {
	logger := log.WithFunc("engine.apply")
	switch ev.Kind {
	case types.EventLoaded:
		s.envs = ev.List
		s.loaded = true
	case types.EventAdded:
		if ev.Record == nil {
			return
		}
		// Append at the tail without re-sorting. A duplicate ID replaces the
		// old entry so identities stay unique.
		next := make([]*types.BootEnvironment, 0, len(s.envs)+1)
		for _, env := range s.envs {
			if env.ID != ev.Record.ID {
				next = append(next, env)
			}
		}
		s.envs = append(next, ev.Record)
	case types.EventRemoved:
		idx := slices.IndexFunc(s.envs, func(env *types.BootEnvironment) bool { return env.ID == ev.ID })
		if idx < 0 {
			logger.Debugf(ctx, "removed %s is not tracked, ignoring", ev.ID)
			return
		}
		s.envs = slices.Delete(slices.Clone(s.envs), idx, idx+1)
	case types.EventModified:
		s.requestReload(ctx)
		return
	default:
		logger.Warnf(ctx, "unexpected %s event from a listener", ev.Kind)
		return
	}
	s.publish(ev.Kind)
}

func (s *Store) handle(ctx context.Context, c control) {
	logger := log.WithFunc("engine.handle")
	switch c.kind {
	case ctlConnecting:
		s.state = types.ConnConnecting
		s.publish(types.EventConnecting)
	case ctlConnected:
		s.backend = c.backend
		s.state = types.ConnConnected
		s.publish(types.EventConnected)
		s.startLoad(ctx)
	case ctlDisconnected:
		// A nil backend means the connect attempt itself failed.
		if c.backend != s.backend {
			logger.Debugf(ctx, "disconnect of a replaced session, ignoring")
			return
		}
		s.backend = nil
		s.state = types.ConnDisconnected
		s.publish(types.EventDisconnected)
	case ctlLoaded:
		logger.Infof(ctx, "reload %s: %d boot environments", c.reload, len(c.list))
		s.apply(ctx, types.Loaded(c.list))
	case ctlFlush:
		s.flushPending = false
		s.startLoad(ctx)
	}
}

// requestReload starts a full reload now, or once the debounce window
// closes when coalescing is enabled.
func (s *Store) requestReload(ctx context.Context) {
	if s.backend == nil {
		log.WithFunc("engine.requestReload").Debugf(ctx, "no session, reload skipped")
		return
	}
	if s.debounce <= 0 {
		s.startLoad(ctx)
		return
	}
	if s.flushPending {
		return
	}
	s.flushPending = true
	time.AfterFunc(s.debounce, func() {
		s.post(ctx, control{kind: ctlFlush})
	})
}

// startLoad runs Load in its own goroutine; the result comes back as a
// control message so the reducer never waits on the bus.
func (s *Store) startLoad(ctx context.Context) {
	backend := s.backend
	if backend == nil {
		return
	}
	logger := log.WithFunc("engine.startLoad")
	id := uuid.NewString()[:8]
	logger.Debugf(ctx, "reload %s started", id)

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		envs, err := backend.Load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Errorf(ctx, err, "reload %s failed", id)
				s.fails.report(ctx, OpLoad, "", err)
			}
			return
		}
		s.post(ctx, control{kind: ctlLoaded, list: envs, reload: id})
	}()
}

func (s *Store) post(ctx context.Context, c control) {
	select {
	case s.inbox <- message{ctl: &c}:
	case <-ctx.Done():
	}
}

func (s *Store) publish(kind types.EventKind) {
	s.seq++
	snap := &Snapshot{
		State:        s.state,
		Loaded:       s.loaded,
		Environments: s.envs,
		Seq:          s.seq,
	}
	s.snap.Store(snap)
	s.notify.publish(Change{Kind: kind, Snapshot: snap})
}
