package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/projecteru2/core/log"
)

// ErrNotConnected is reported when an operation needs a session and there is none.
var ErrNotConnected = errors.New("not connected to the boot environment service")

// Operations reported in Failure.Op.
const (
	OpConnect  = "connect"
	OpWatch    = "watch"
	OpLoad     = "load"
	OpActivate = "activate"
)

// Failure is a non-fatal error surfaced next to, not inside, state updates.
type Failure struct {
	Op   string
	ID   string // environment ID for OpActivate
	Err  error
	Time time.Time
}

func (f Failure) Error() string {
	if f.ID != "" {
		return fmt.Sprintf("%s %s: %v", f.Op, f.ID, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// failures is a bounded, drop-on-full sink. Logging already happened at the
// call site, so a dropped failure loses nothing the operator can't see.
type failures chan Failure

func (fs failures) report(ctx context.Context, op, id string, err error) {
	f := Failure{Op: op, ID: id, Err: err, Time: time.Now()}
	select {
	case fs <- f:
	default:
		log.WithFunc("engine.report").Debugf(ctx, "failure channel full, dropped: %v", f)
	}
}
