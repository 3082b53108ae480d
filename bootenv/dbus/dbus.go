package dbus

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	godbus "github.com/godbus/dbus/v5"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/config"
	"github.com/projecteru2/bootenv/types"
)

const typ = "dbus"

// Standard freedesktop interfaces used by the service.
const (
	ifaceObjectManager = "org.freedesktop.DBus.ObjectManager"
	ifaceProperties    = "org.freedesktop.DBus.Properties"

	methodGetManagedObjects = ifaceObjectManager + ".GetManagedObjects"
	signalInterfacesAdded   = ifaceObjectManager + ".InterfacesAdded"
	signalInterfacesRemoved = ifaceObjectManager + ".InterfacesRemoved"
	signalPropertiesChanged = ifaceProperties + ".PropertiesChanged"
)

// compile-time interface check.
var _ bootenv.Backend = (*DBus)(nil)

// DBus implements bootenv.Backend against the kamacite service.
type DBus struct {
	conf config.BusConfig
	bus  Bus
}

// New wraps an established bus session.
func New(conf config.BusConfig, bus Bus) *DBus {
	return &DBus{conf: conf, bus: bus}
}

// Connector returns a bootenv.Connector that opens a fresh Session on each call.
func Connector(conf config.BusConfig) bootenv.Connector {
	return func(ctx context.Context) (bootenv.Backend, error) {
		s, err := Connect(ctx, conf)
		if err != nil {
			return nil, err
		}
		return New(conf, s), nil
	}
}

func (d *DBus) Type() string { return typ }

func (d *DBus) UniqueName() string { return d.bus.UniqueName() }

func (d *DBus) Close() error { return d.bus.Close() }

// Load enumerates the object manager and decodes every object exposing the
// boot environment interface. Any decode failure aborts the whole load.
func (d *DBus) Load(ctx context.Context) ([]*types.BootEnvironment, error) {
	body, err := d.bus.Call(ctx, godbus.ObjectPath(d.conf.Path), methodGetManagedObjects)
	if err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	var objects map[godbus.ObjectPath]map[string]map[string]godbus.Variant
	if err := godbus.Store(body, &objects); err != nil {
		return nil, fmt.Errorf("parse managed objects: %w", err)
	}

	// Walk paths in order so ties on Created come out the same every load.
	paths := make([]godbus.ObjectPath, 0, len(objects))
	for path := range objects {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	envs := make([]*types.BootEnvironment, 0, len(paths))
	for _, path := range paths {
		props, ok := objects[path][d.conf.Interface]
		if !ok {
			continue
		}
		env, err := Decode(path, props)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	slices.SortStableFunc(envs, func(a, b *types.BootEnvironment) int {
		return cmp.Compare(a.Created, b.Created)
	})
	return envs, nil
}

// Activate calls Activate(temporary) on the environment's object.
func (d *DBus) Activate(ctx context.Context, id string, temporary bool) error {
	path := godbus.ObjectPath(id)
	if !path.IsValid() {
		return fmt.Errorf("activate %s: invalid object path", id)
	}
	if _, err := d.bus.Call(ctx, path, d.conf.Interface+".Activate", temporary); err != nil {
		return fmt.Errorf("activate %s: %w", id, err)
	}
	return nil
}
