package engine

import (
	"sync"

	"github.com/projecteru2/bootenv/types"
)

// Change is published after the reducer applied an event.
type Change struct {
	Kind     types.EventKind
	Snapshot *Snapshot
}

// Subscription receives changes from the store.
type Subscription struct {
	C  <-chan Change
	ch chan Change
}

// notifier fans changes out to all subscribers. A subscriber whose buffer
// is full misses that change; Store.Snapshot always has the latest state.
type notifier struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[*Subscription]struct{})}
}

func (n *notifier) subscribe(bufSize int) *Subscription {
	ch := make(chan Change, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()

	return sub
}

func (n *notifier) unsubscribe(sub *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		close(sub.ch)
	}
}

func (n *notifier) publish(c Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for sub := range n.subs {
		select {
		case sub.ch <- c:
		default:
		}
	}
}
