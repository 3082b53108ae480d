package bootenv

import (
	"context"

	"github.com/projecteru2/bootenv/types"
)

// Backend is a live session with a boot environment service.
// The only implementation talks D-Bus; tests use in-memory fakes.
type Backend interface {
	Type() string

	// Load enumerates every environment, sorted ascending by Created.
	// A single undecodable object fails the whole call.
	Load(context.Context) ([]*types.BootEnvironment, error)
	// Activate asks the service to boot id next; temporary selects boot-once.
	Activate(ctx context.Context, id string, temporary bool) error
	// Watch streams Added/Removed/Modified events through emit until ctx is
	// done or the underlying stream ends. It returns ErrStreamClosed when the
	// session went away.
	Watch(ctx context.Context, emit Emit) error

	// UniqueName is the session's bus name, for logging.
	UniqueName() string
	Close() error
}

// Emit hands one event to the consumer, blocking while it is busy. Events
// are delivered in call order. It fails only once ctx is done.
type Emit func(ctx context.Context, ev types.Event) error

// Connector establishes a new session. It is called by the engine on start
// and, if the retry policy allows, after the session is lost.
type Connector func(context.Context) (Backend, error)
