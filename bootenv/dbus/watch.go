package dbus

import (
	"context"
	"errors"
	"strings"

	godbus "github.com/godbus/dbus/v5"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/types"
)

// Watch runs the structural and the property listener side by side and
// forwards their events through emit. A listener whose subscription cannot be set
// up logs, gives up, and leaves the other one running.
//
// Watch returns bootenv.ErrStreamClosed once the bus stops delivering
// signals, ctx.Err() on cancellation, and the joined subscription errors if
// neither listener could start.
func (d *DBus) Watch(ctx context.Context, emit bootenv.Emit) error {
	var subErrs [2]error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := d.watchObjects(gctx, emit)
		return subscribeResult(err, &subErrs[0])
	})
	g.Go(func() error {
		err := d.watchProperties(gctx, emit)
		return subscribeResult(err, &subErrs[1])
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Join(subErrs[:]...)
}

// subscribeError marks a failure to set up a subscription, as opposed to the
// stream ending later on.
type subscribeError struct{ err error }

func (e subscribeError) Error() string { return e.err.Error() }
func (e subscribeError) Unwrap() error { return e.err }

// subscribeResult keeps subscription failures out of the errgroup so the
// sibling listener is not cancelled.
func subscribeResult(err error, slot *error) error {
	var se subscribeError
	if errors.As(err, &se) {
		*slot = se.err
		return nil
	}
	return err
}

// watchObjects turns InterfacesAdded/InterfacesRemoved into Added/Removed.
func (d *DBus) watchObjects(ctx context.Context, emit bootenv.Emit) error {
	logger := log.WithFunc("dbus.watchObjects")
	managerPath := godbus.ObjectPath(d.conf.Path)

	signals, cancel, err := d.bus.Subscribe(ctx,
		godbus.WithMatchSender(d.conf.Service),
		godbus.WithMatchObjectPath(managerPath),
		godbus.WithMatchInterface(ifaceObjectManager),
	)
	if err != nil {
		logger.Errorf(ctx, err, "subscribe to object manager signals, additions and removals will be ignored")
		return subscribeError{err}
	}
	defer cancel()

	for {
		var sig *godbus.Signal
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-signals:
			if !ok {
				return bootenv.ErrStreamClosed
			}
			sig = s
		}
		if sig.Path != managerPath {
			continue
		}

		var ev types.Event
		switch sig.Name {
		case signalInterfacesAdded:
			var (
				path   godbus.ObjectPath
				ifaces map[string]map[string]godbus.Variant
			)
			if err := godbus.Store(sig.Body, &path, &ifaces); err != nil {
				logger.Errorf(ctx, err, "parse InterfacesAdded")
				continue
			}
			props, ok := ifaces[d.conf.Interface]
			if !ok {
				continue
			}
			env, err := Decode(path, props)
			if err != nil {
				logger.Errorf(ctx, err, "parse boot environment %s", path)
				continue
			}
			logger.Infof(ctx, "boot environment added: %s (%s)", env.Name, env.ID)
			ev = types.Added(env)
		case signalInterfacesRemoved:
			var (
				path   godbus.ObjectPath
				ifaces []string
			)
			if err := godbus.Store(sig.Body, &path, &ifaces); err != nil {
				logger.Errorf(ctx, err, "parse InterfacesRemoved")
				continue
			}
			logger.Infof(ctx, "boot environment removed: %s", path)
			ev = types.Removed(string(path))
		default:
			continue
		}
		if err := emit(ctx, ev); err != nil {
			return err
		}
	}
}

// watchProperties emits one Modified per PropertiesChanged anywhere under the
// manager path. Nothing is patched incrementally; the reducer reloads.
func (d *DBus) watchProperties(ctx context.Context, emit bootenv.Emit) error {
	logger := log.WithFunc("dbus.watchProperties")
	namespace := d.conf.Path

	signals, cancel, err := d.bus.Subscribe(ctx,
		godbus.WithMatchInterface(ifaceProperties),
		godbus.WithMatchMember("PropertiesChanged"),
		godbus.WithMatchOption("path_namespace", namespace),
	)
	if err != nil {
		logger.Errorf(ctx, err, "subscribe to PropertiesChanged, property updates will be ignored")
		return subscribeError{err}
	}
	defer cancel()

	for {
		var sig *godbus.Signal
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-signals:
			if !ok {
				return bootenv.ErrStreamClosed
			}
			sig = s
		}
		if sig.Name != signalPropertiesChanged || !inNamespace(string(sig.Path), namespace) {
			continue
		}
		if err := emit(ctx, types.Modified()); err != nil {
			return err
		}

		var (
			iface       string
			changed     map[string]godbus.Variant
			invalidated []string
		)
		if err := godbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil {
			logger.Errorf(ctx, err, "parse PropertiesChanged from %s", sig.Path)
			continue
		}
		names := make([]string, 0, len(changed))
		for name := range changed {
			names = append(names, name)
		}
		logger.Debugf(ctx, "%s on %s changed: %s", iface, sig.Path, strings.Join(names, ","))
	}
}

// inNamespace mirrors the bus daemon's path_namespace matching.
func inNamespace(path, namespace string) bool {
	if namespace == "/" || path == namespace {
		return true
	}
	return strings.HasPrefix(path, namespace+"/")
}
