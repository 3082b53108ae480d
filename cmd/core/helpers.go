package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/bootenv/dbus"
	"github.com/projecteru2/bootenv/config"
	"github.com/projecteru2/bootenv/engine"
	"github.com/projecteru2/bootenv/utils"
)

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// InitBackend opens a one-shot session for read-only commands.
func InitBackend(ctx context.Context, conf *config.Config) (bootenv.Backend, error) {
	backend, err := dbus.Connector(conf.Bus)(ctx)
	if err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}
	return backend, nil
}

// StartEngine runs an engine in the background. The returned stop function
// cancels it and waits for Run to return.
func StartEngine(ctx context.Context, conf *config.Config) (*engine.Engine, func()) {
	eng := engine.New(conf, dbus.Connector(conf.Bus), engine.PolicyFromConfig(conf.Reconnect))
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	return eng, func() {
		cancel()
		<-done
	}
}

// WaitLoaded blocks until the engine has completed its first full load.
// A connect or load failure ends the wait early with that failure.
func WaitLoaded(ctx context.Context, eng *engine.Engine, timeout time.Duration) (*engine.Snapshot, error) {
	sub := eng.Subscribe(1)
	defer eng.Unsubscribe(sub)

	var snap *engine.Snapshot
	err := utils.WaitFor(ctx, timeout, 50*time.Millisecond, sub.C, func() (bool, error) { //nolint:mnd
		if f, ok := TakeFailure(ctx, eng.Errors(), func(f engine.Failure) bool {
			return f.Op == engine.OpConnect || f.Op == engine.OpLoad
		}); ok {
			return false, f
		}
		snap = eng.Snapshot()
		return snap.Loaded, nil
	})
	if err != nil {
		var f engine.Failure
		if errors.As(err, &f) {
			return nil, err
		}
		return nil, fmt.Errorf("wait for boot environments: %w", err)
	}
	return snap, nil
}

// TakeFailure drains the failures already queued on errs and returns the
// first one match accepts. Failures it passes over are logged, not lost
// silently. It never blocks.
func TakeFailure(ctx context.Context, errs <-chan engine.Failure, match func(engine.Failure) bool) (engine.Failure, bool) {
	logger := log.WithFunc("cmd.TakeFailure")
	for {
		select {
		case f := <-errs:
			if match(f) {
				return f, true
			}
			logger.Warnf(ctx, "%v", f)
		default:
			return engine.Failure{}, false
		}
	}
}

// SetupColor turns coloured output off unless stdout is a terminal.
func SetupColor() {
	color.NoColor = color.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
}
