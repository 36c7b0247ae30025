// Package config provides the configuration of a framekit runtime.
// It defines a single Config structure that the host, the registries and
// the CLI read from, so every component agrees on the same settings.
//
// The configuration is organized into logical sections:
//   - Logging: level, encoding and output of the global zap logger
//   - Pool: type checking and pre-warming of the object pool
//   - FSM: how destroyed state machines are recycled
//   - Runtime: frame rate, time scale and frame limit of the host loop
//   - Observability: metrics endpoint and tracing
//
// Example usage:
//
//	cfg := config.NewConfig("my-game")
//	cfg.Runtime.FrameRate = 30
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/framekit/pkg/errors"
	"github.com/ajitpratap0/framekit/pkg/logger"
)

const (
	// DefaultFrameRate is the number of host frames per second.
	DefaultFrameRate = 60
	// MaxFrameRate is the highest frame rate Validate accepts.
	MaxFrameRate = 1000
)

// Config is the configuration of one framekit runtime.
type Config struct {
	// Name identifies the runtime in logs, traces and metrics
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	Logging       logger.Config       `yaml:"logging" json:"logging" mapstructure:"logging"`
	Pool          PoolConfig          `yaml:"pool" json:"pool" mapstructure:"pool"`
	FSM           FSMConfig           `yaml:"fsm" json:"fsm" mapstructure:"fsm"`
	Runtime       RuntimeConfig       `yaml:"runtime" json:"runtime" mapstructure:"runtime"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// PoolConfig controls the object pool registry.
type PoolConfig struct {
	// StrictCheck re-validates every type before a collection is created.
	// Disable it only for trusted, pre-validated call sites.
	StrictCheck bool `yaml:"strict_check" json:"strict_check" mapstructure:"strict_check"`
	// Prewarm maps a catalog type name to the number of idle instances
	// reserved at startup. Names are matched case-insensitively.
	Prewarm map[string]int `yaml:"prewarm" json:"prewarm" mapstructure:"prewarm"`
}

// FSMConfig controls the state machine registry.
type FSMConfig struct {
	// SharePool recycles destroyed machines through the object pool registry
	// instead of a private one, so they show up in pool reports.
	SharePool bool `yaml:"share_pool" json:"share_pool" mapstructure:"share_pool"`
}

// RuntimeConfig controls the fixed-step host loop.
type RuntimeConfig struct {
	// FrameRate is the number of frames per second
	FrameRate int `yaml:"frame_rate" json:"frame_rate" mapstructure:"frame_rate"`
	// TimeScale multiplies the scaled delta passed to updates (0 pauses)
	TimeScale float64 `yaml:"time_scale" json:"time_scale" mapstructure:"time_scale"`
	// MaxFrames stops the loop after this many frames (0 = unlimited)
	MaxFrames int `yaml:"max_frames" json:"max_frames" mapstructure:"max_frames"`
}

// ObservabilityConfig contains metrics and tracing settings.
type ObservabilityConfig struct {
	EnableMetrics     bool    `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	MetricsAddr       string  `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	EnableTracing     bool    `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Logging: logger.DefaultConfig(),
		Pool: PoolConfig{
			StrictCheck: true,
			Prewarm:     make(map[string]int),
		},
		FSM: FSMConfig{
			SharePool: false,
		},
		Runtime: RuntimeConfig{
			FrameRate: DefaultFrameRate,
			TimeScale: 1.0,
			MaxFrames: 0,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     false,
			MetricsAddr:       ":9090",
			EnableTracing:     false,
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and value ranges. Every failure is an
// errors.ErrorTypeConfig error naming the offending field.
func (c *Config) Validate() error {
	if c.Name == "" {
		return configError("name", "name is required")
	}
	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return configError("logging.level", "invalid log level %q", c.Logging.Level)
		}
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return configError("logging.encoding", "encoding must be json or console, got %q", c.Logging.Encoding)
	}
	for name, count := range c.Pool.Prewarm {
		if name == "" {
			return configError("pool.prewarm", "prewarm type name cannot be empty")
		}
		if count < 0 {
			return configError("pool.prewarm", "prewarm count for %s cannot be negative", name)
		}
	}
	if c.Runtime.FrameRate <= 0 || c.Runtime.FrameRate > MaxFrameRate {
		return configError("runtime.frame_rate", "frame_rate must be between 1 and %d", MaxFrameRate)
	}
	if c.Runtime.TimeScale < 0 {
		return configError("runtime.time_scale", "time_scale cannot be negative")
	}
	if c.Runtime.MaxFrames < 0 {
		return configError("runtime.max_frames", "max_frames cannot be negative")
	}
	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return configError("observability.metrics_addr", "metrics_addr is required when metrics are enabled")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return configError("observability.tracing_sample_rate", "tracing_sample_rate must be between 0 and 1")
	}
	return nil
}

// FrameDuration returns the fixed step of the host loop.
func (r *RuntimeConfig) FrameDuration() time.Duration {
	if r.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Second / time.Duration(r.FrameRate)
}

// IsBounded returns true if the loop stops after MaxFrames
func (r *RuntimeConfig) IsBounded() bool {
	return r.MaxFrames > 0
}

func configError(field, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeConfig, format, args...).WithDetail("field", field)
}
