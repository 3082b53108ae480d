package dbus

import (
	"context"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/bootenv/bootenv"
	"github.com/projecteru2/bootenv/config"
	"github.com/projecteru2/bootenv/types"
)

type watchRun struct {
	bus    *fakeBus
	out    chan types.Event
	done   chan error
	cancel context.CancelFunc
}

func startWatch(t *testing.T, bus *fakeBus, wantSubs int) *watchRun {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := &watchRun{bus: bus, out: make(chan types.Event, 16), done: make(chan error, 1), cancel: cancel}
	d := New(config.DefaultBusConfig(), bus)
	go func() { w.done <- d.Watch(ctx, chanEmit(w.out)) }()
	t.Cleanup(cancel)
	require.Eventually(t, func() bool { return bus.subscribed() == wantSubs }, time.Second, 5*time.Millisecond)
	return w
}

func chanEmit(out chan<- types.Event) bootenv.Emit {
	return func(ctx context.Context, ev types.Event) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *watchRun) next(t *testing.T) types.Event {
	t.Helper()
	select {
	case ev := <-w.out:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

func (w *watchRun) quiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-w.out:
		t.Fatalf("unexpected event %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func addedSignal(path godbus.ObjectPath, props map[string]godbus.Variant) *godbus.Signal {
	return &godbus.Signal{
		Path: config.DefaultPath,
		Name: signalInterfacesAdded,
		Body: []any{path, map[string]map[string]godbus.Variant{config.DefaultInterface: props}},
	}
}

func removedSignal(path godbus.ObjectPath) *godbus.Signal {
	return &godbus.Signal{
		Path: config.DefaultPath,
		Name: signalInterfacesRemoved,
		Body: []any{path, []string{config.DefaultInterface}},
	}
}

func propertiesSignal(path godbus.ObjectPath, changed map[string]godbus.Variant) *godbus.Signal {
	return &godbus.Signal{
		Path: path,
		Name: signalPropertiesChanged,
		Body: []any{config.DefaultInterface, changed, []string{}},
	}
}

func TestWatch_Added(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(addedSignal(envPath("new"), envProps("new", 42)))

	ev := w.next(t)
	assert.Equal(t, types.EventAdded, ev.Kind)
	require.NotNil(t, ev.Record)
	assert.Equal(t, "new", ev.Record.Name)
	assert.Equal(t, string(envPath("new")), ev.Record.ID)
	w.quiet(t)
}

func TestWatch_AddedUndecodableIsDropped(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	bad := envProps("bad", 1)
	delete(bad, "Name")
	w.bus.emit(addedSignal(envPath("bad"), bad))
	w.bus.emit(addedSignal(envPath("good"), envProps("good", 2)))

	ev := w.next(t)
	assert.Equal(t, types.EventAdded, ev.Kind)
	assert.Equal(t, "good", ev.Record.Name)
	w.quiet(t)
}

func TestWatch_AddedOtherInterfaceIgnored(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(&godbus.Signal{
		Path: config.DefaultPath,
		Name: signalInterfacesAdded,
		Body: []any{envPath("pool"), map[string]map[string]godbus.Variant{"ca.kamacite.Pool": {}}},
	})
	w.quiet(t)
}

func TestWatch_Removed(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(removedSignal(envPath("old")))

	ev := w.next(t)
	assert.Equal(t, types.EventRemoved, ev.Kind)
	assert.Equal(t, string(envPath("old")), ev.ID)
	w.quiet(t)
}

func TestWatch_OnePropertiesChangedIsOneModified(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(propertiesSignal(envPath("a"), map[string]godbus.Variant{
		"Active":   godbus.MakeVariant(false),
		"NextBoot": godbus.MakeVariant(true),
		"BootOnce": godbus.MakeVariant(true),
	}))

	assert.Equal(t, types.EventModified, w.next(t).Kind)
	w.quiet(t)
}

func TestWatch_EachPropertiesChangedIsModified(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(propertiesSignal(envPath("a"), map[string]godbus.Variant{"BootOnce": godbus.MakeVariant(false)}))
	w.bus.emit(propertiesSignal(envPath("b"), map[string]godbus.Variant{"BootOnce": godbus.MakeVariant(true)}))

	assert.Equal(t, types.EventModified, w.next(t).Kind)
	assert.Equal(t, types.EventModified, w.next(t).Kind)
	w.quiet(t)
}

func TestWatch_PropertiesOutsideNamespaceIgnored(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.bus.emit(propertiesSignal("/ca/kamacite/BootEnvironmentsOther/a", nil))
	w.bus.emit(propertiesSignal("/org/freedesktop/login1", nil))
	w.quiet(t)
}

func TestWatch_StreamClosed(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	require.NoError(t, w.bus.Close())

	select {
	case err := <-w.done:
		assert.ErrorIs(t, err, bootenv.ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after the bus closed")
	}
}

func TestWatch_Cancelled(t *testing.T) {
	w := startWatch(t, newFakeBus(), 2)

	w.cancel()

	select {
	case err := <-w.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_OneSubscriptionFails(t *testing.T) {
	bus := newFakeBus()
	bus.failSubscribe = 1
	w := startWatch(t, bus, 1)

	// Only the surviving listener reacts; which one that is depends on
	// scheduling, so send one signal for each.
	w.bus.emit(removedSignal(envPath("old")))
	w.bus.emit(propertiesSignal(envPath("a"), nil))

	ev := w.next(t)
	assert.Contains(t, []types.EventKind{types.EventRemoved, types.EventModified}, ev.Kind)
	w.quiet(t)

	select {
	case err := <-w.done:
		t.Fatalf("Watch returned early: %v", err)
	default:
	}
}

func TestWatch_BothSubscriptionsFail(t *testing.T) {
	bus := newFakeBus()
	bus.failSubscribe = 2
	d := New(config.DefaultBusConfig(), bus)

	err := d.Watch(context.Background(), chanEmit(make(chan types.Event, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, bootenv.ErrStreamClosed)
}
