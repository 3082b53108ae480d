package dbus

import (
	"context"
	"errors"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/projecteru2/bootenv/config"
)

var errBoom = errors.New("boom")

type fakeCall struct {
	path   godbus.ObjectPath
	method string
	args   []any
}

// fakeBus mimics a godbus connection: every subscription channel sees every
// signal, and closing the bus closes them all.
type fakeBus struct {
	mu          sync.Mutex
	objects     map[godbus.ObjectPath]map[string]map[string]godbus.Variant
	loadErr     error
	activateErr error
	calls       []fakeCall
	subs        []chan *godbus.Signal
	// failSubscribe fails this many Subscribe calls before succeeding.
	failSubscribe int
	closed        bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{objects: map[godbus.ObjectPath]map[string]map[string]godbus.Variant{}}
}

func (f *fakeBus) put(path godbus.ObjectPath, props map[string]godbus.Variant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = map[string]map[string]godbus.Variant{config.DefaultInterface: props}
}

func (f *fakeBus) Call(_ context.Context, path godbus.ObjectPath, method string, args ...any) ([]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{path: path, method: method, args: args})
	if method == methodGetManagedObjects {
		if f.loadErr != nil {
			return nil, f.loadErr
		}
		return []any{f.objects}, nil
	}
	return nil, f.activateErr
}

func (f *fakeBus) Subscribe(_ context.Context, _ ...godbus.MatchOption) (<-chan *godbus.Signal, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe > 0 {
		f.failSubscribe--
		return nil, nil, errBoom
	}
	ch := make(chan *godbus.Signal, 16)
	f.subs = append(f.subs, ch)
	return ch, func() {}, nil
}

func (f *fakeBus) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeBus) emit(sig *godbus.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- sig
	}
}

func (f *fakeBus) UniqueName() string { return ":1.7" }

func (f *fakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		for _, ch := range f.subs {
			close(ch)
		}
	}
	return nil
}

func (f *fakeBus) callsTo(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func envProps(name string, created int64) map[string]godbus.Variant {
	return map[string]godbus.Variant{
		"Name":        godbus.MakeVariant(name),
		"Description": godbus.MakeVariant(""),
		"Active":      godbus.MakeVariant(false),
		"NextBoot":    godbus.MakeVariant(false),
		"BootOnce":    godbus.MakeVariant(false),
		"Created":     godbus.MakeVariant(created),
	}
}

func envPath(name string) godbus.ObjectPath {
	return godbus.ObjectPath(config.DefaultPath + "/" + name)
}
