package bootenv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	"github.com/projecteru2/bootenv/bootenv"
	cmdcore "github.com/projecteru2/bootenv/cmd/core"
	"github.com/projecteru2/bootenv/engine"
	"github.com/projecteru2/bootenv/lock"
	"github.com/projecteru2/bootenv/lock/flock"
	"github.com/projecteru2/bootenv/types"
	"github.com/projecteru2/bootenv/utils"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) List(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	backend, err := cmdcore.InitBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer backend.Close() //nolint:errcheck

	envs, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(envs)
	}
	if len(envs) == 0 {
		fmt.Println("No boot environments found.")
		return nil
	}
	cmdcore.SetupColor()
	printTable(os.Stdout, envs, time.Now())
	return nil
}

func (h Handler) Status(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	backend, err := cmdcore.InitBackend(ctx, conf)
	if err != nil {
		return err
	}
	defer backend.Close() //nolint:errcheck

	envs, err := backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	cmdcore.SetupColor()
	printStatus(os.Stdout, &engine.Snapshot{State: types.ConnConnected, Loaded: true, Environments: envs})
	return nil
}

// Activate runs the engine so the activation is followed by a full reload,
// and reads the outcome off the reloaded state rather than the call result.
func (h Handler) Activate(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	logger := log.WithFunc("cmd.activate")
	permanent, _ := cmd.Flags().GetBool("permanent")
	wait, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	eng, stop := cmdcore.StartEngine(ctx, conf)
	defer stop()

	snap, err := cmdcore.WaitLoaded(ctx, eng, timeout)
	if err != nil {
		return err
	}
	env, err := bootenv.Resolve(snap.Environments, args[0])
	if err != nil {
		return err
	}

	sub := eng.Subscribe(1)
	defer eng.Unsubscribe(sub)

	eng.Activate(ctx, env.ID, !permanent)
	// A failed call is reported before Activate returns.
	if f, ok := cmdcore.TakeFailure(ctx, eng.Errors(), func(f engine.Failure) bool {
		return f.Op == engine.OpActivate && f.ID == env.ID
	}); ok {
		return fmt.Errorf("activate %s: %w", env.Name, f.Err)
	}

	if !wait {
		logger.Infof(ctx, "activation of %s requested", env.Label())
		return nil
	}
	err = utils.WaitFor(ctx, timeout, time.Second, sub.C, func() (bool, error) {
		cur := eng.Snapshot().Find(env.ID)
		if cur == nil {
			return false, fmt.Errorf("%s: %w", env.Name, bootenv.ErrNotFound)
		}
		if permanent {
			return cur.NextBoot, nil
		}
		return cur.BootOnce, nil
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", env.Name, err)
	}
	logger.Infof(ctx, "%s will be booted next", env.Label())
	return nil
}

// Watch prints every change until interrupted. Only one watcher runs per
// run directory.
func (h Handler) Watch(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	if err := utils.EnsureDirs(conf.RunDir); err != nil {
		return err
	}
	watchLock := flock.New(conf.WatchLock())
	release, err := lock.Acquire(ctx, watchLock)
	if err != nil {
		if !errors.Is(err, lock.ErrBusy) {
			return err
		}
		if pid, herr := watchLock.Holder(); herr == nil {
			return fmt.Errorf("another watcher is running (pid %d)", pid)
		}
		return fmt.Errorf("another watcher is running (%s)", conf.WatchLock())
	}
	defer release()

	cmdcore.SetupColor()
	eng, stop := cmdcore.StartEngine(ctx, conf)
	defer stop()
	sub := eng.Subscribe(conf.EventBuffer)
	defer eng.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-sub.C:
			printChange(os.Stdout, c, time.Now())
		case f := <-eng.Errors():
			fmt.Fprintf(os.Stderr, "%s  error: %v\n", f.Time.Format(time.TimeOnly), f)
		}
	}
}
