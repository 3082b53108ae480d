package dbus

import (
	"context"
	"fmt"

	godbus "github.com/godbus/dbus/v5"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/bootenv/config"
)

// Bus is the slice of a D-Bus connection the backend needs. Session
// implements it over a real connection; tests substitute fakes.
type Bus interface {
	// Call invokes method ("iface.Member") on path at the configured service
	// and returns the reply body.
	Call(ctx context.Context, path godbus.ObjectPath, method string, args ...any) ([]any, error)
	// Subscribe installs a match rule and returns a channel of signals. The
	// channel is closed when the connection goes away. cancel removes the
	// rule and stops delivery.
	Subscribe(ctx context.Context, rule ...godbus.MatchOption) (signals <-chan *godbus.Signal, cancel func(), err error)
	UniqueName() string
	Close() error
}

// compile-time interface check.
var _ Bus = (*Session)(nil)

// Session owns one private connection to the bus.
type Session struct {
	conn    *godbus.Conn
	service string
	buffer  int
}

// Connect opens a private connection to the bus named by conf.Address.
func Connect(ctx context.Context, conf config.BusConfig) (*Session, error) {
	var (
		conn *godbus.Conn
		err  error
	)
	switch conf.Address {
	case "", "system":
		conn, err = godbus.ConnectSystemBus(godbus.WithContext(ctx))
	case "session":
		conn, err = godbus.ConnectSessionBus(godbus.WithContext(ctx))
	default:
		conn, err = godbus.Connect(conf.Address, godbus.WithContext(ctx))
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s bus: %w", conf.Address, err)
	}
	s := &Session{conn: conn, service: conf.Service, buffer: conf.SignalBuffer}
	log.WithFunc("dbus.Connect").Infof(ctx, "connected to %s bus as %s", conf.Address, s.UniqueName())
	return s, nil
}

func (s *Session) Call(ctx context.Context, path godbus.ObjectPath, method string, args ...any) ([]any, error) {
	call := s.conn.Object(s.service, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Body, nil
}

func (s *Session) Subscribe(ctx context.Context, rule ...godbus.MatchOption) (<-chan *godbus.Signal, func(), error) {
	if err := s.conn.AddMatchSignalContext(ctx, rule...); err != nil {
		return nil, nil, fmt.Errorf("add match: %w", err)
	}
	ch := make(chan *godbus.Signal, s.buffer)
	s.conn.Signal(ch)
	cancel := func() {
		s.conn.RemoveSignal(ch)
		// Best effort; the connection may already be closed.
		_ = s.conn.RemoveMatchSignalContext(context.WithoutCancel(ctx), rule...)
	}
	return ch, cancel, nil
}

// UniqueName returns the ":1.42"-style name the bus assigned to us.
func (s *Session) UniqueName() string {
	if names := s.conn.Names(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// Close drops the connection. Every subscription channel is closed by the
// library, which ends the listeners.
func (s *Session) Close() error {
	return s.conn.Close()
}
