package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Well-known names of the kamacite boot environment service.
const (
	DefaultService   = "ca.kamacite.BootEnvironments1"
	DefaultPath      = "/ca/kamacite/BootEnvironments"
	DefaultInterface = "ca.kamacite.BootEnvironment"
)

// BusConfig locates the service on the bus.
type BusConfig struct {
	// Address is "system", "session", or a D-Bus address such as
	// "unix:path=/run/dbus/system_bus_socket".
	Address   string `json:"address" mapstructure:"address"`
	Service   string `json:"service" mapstructure:"service"`
	Path      string `json:"path" mapstructure:"path"`
	Interface string `json:"interface" mapstructure:"interface"`
	// SignalBuffer is the per-subscription signal channel capacity.
	SignalBuffer int `json:"signal_buffer" mapstructure:"signal_buffer"`
}

// DefaultBusConfig points at the kamacite service on the system bus.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Address:      "system",
		Service:      DefaultService,
		Path:         DefaultPath,
		Interface:    DefaultInterface,
		SignalBuffer: 32, //nolint:mnd
	}
}

func (b *BusConfig) normalize() {
	def := DefaultBusConfig()
	if b.Address == "" {
		b.Address = def.Address
	}
	if b.Service == "" {
		b.Service = def.Service
	}
	if b.Path == "" {
		b.Path = def.Path
	}
	if b.Interface == "" {
		b.Interface = def.Interface
	}
	if b.SignalBuffer <= 0 {
		b.SignalBuffer = def.SignalBuffer
	}
}

func (b *BusConfig) validate() error {
	if !strings.HasPrefix(b.Path, "/") || (len(b.Path) > 1 && strings.HasSuffix(b.Path, "/")) {
		return fmt.Errorf("invalid object path %q", b.Path)
	}
	if !strings.Contains(b.Service, ".") {
		return fmt.Errorf("invalid service name %q", b.Service)
	}
	if !strings.Contains(b.Interface, ".") {
		return fmt.Errorf("invalid interface name %q", b.Interface)
	}
	return nil
}

// WatchLock is the lock file guarding a single `bootenv watch` per run dir.
// While held it contains the watcher's PID.
func (c *Config) WatchLock() string { return filepath.Join(c.RunDir, "watch.lock") }
