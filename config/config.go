package config

import (
	"fmt"
	"time"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global bootenv configuration.
type Config struct {
	// RunDir holds runtime files such as the watcher lock.
	RunDir string `json:"run_dir" mapstructure:"run_dir"`
	// Bus describes where the boot environment service lives.
	Bus BusConfig `json:"bus" mapstructure:"bus"`

	// EventBuffer is the capacity of the reducer's input channel. Producers
	// block when it is full.
	EventBuffer int `json:"event_buffer" mapstructure:"event_buffer"`
	// ErrorBuffer is the capacity of the failure channel. Failures are
	// dropped when nobody drains it.
	ErrorBuffer int `json:"error_buffer" mapstructure:"error_buffer"`
	// ReloadDebounce coalesces bursts of property changes into one reload.
	// Zero reloads once per change signal.
	ReloadDebounce time.Duration `json:"reload_debounce" mapstructure:"reload_debounce"`
	// Reconnect controls what happens after the bus session is lost.
	Reconnect ReconnectConfig `json:"reconnect" mapstructure:"reconnect"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// ReconnectConfig is the retry policy for lost sessions.
// MaxAttempts == 0 never reconnects.
type ReconnectConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RunDir:      "/run/bootenv",
		Bus:         DefaultBusConfig(),
		EventBuffer: 32, //nolint:mnd
		ErrorBuffer: 16, //nolint:mnd
		Reconnect: ReconnectConfig{
			Interval: 5 * time.Second, //nolint:mnd
		},
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Normalize fills zero values left behind by a partial config file.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.RunDir == "" {
		c.RunDir = def.RunDir
	}
	c.Bus.normalize()
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = def.ErrorBuffer
	}
	if c.ReloadDebounce < 0 {
		c.ReloadDebounce = 0
	}
	if c.Reconnect.MaxAttempts < 0 {
		c.Reconnect.MaxAttempts = 0
	}
	if c.Reconnect.Interval <= 0 {
		c.Reconnect.Interval = def.Reconnect.Interval
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate rejects configurations the D-Bus backend cannot use.
func (c *Config) Validate() error {
	if err := c.Bus.validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	return nil
}
