package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/deepaksharma/spancore/core/mapping"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration of a span host and its sink.
type Config struct {
	// InstrumentationKey identifies the backend resource receiving telemetry
	InstrumentationKey string `mapstructure:"instrumentation_key" yaml:"instrumentation_key"`

	Trace   TraceConfig     `mapstructure:"trace" yaml:"trace"`
	Mapping mapping.Options `mapstructure:"mapping" yaml:"mapping"`
	Sink    SinkConfig      `mapstructure:"sink" yaml:"sink"`
	Logging LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// TraceConfig holds the settings read by the span host.
type TraceConfig struct {
	// SuppressTracing stops ended spans from being emitted as telemetry
	SuppressTracing bool `mapstructure:"suppress_tracing" yaml:"suppress_tracing"`
}

// SinkConfig configures the buffering sender.
type SinkConfig struct {
	// MaxQueueSize is the max number of items held in memory
	MaxQueueSize int `mapstructure:"max_queue_size" yaml:"max_queue_size"`

	// MaxBatchSize triggers a flush as soon as this many items are queued
	MaxBatchSize int `mapstructure:"max_batch_size" yaml:"max_batch_size"`

	// FlushInterval is how often queued items are transmitted
	FlushInterval string `mapstructure:"flush_interval" yaml:"flush_interval"`

	// DedupeWindow is how long an item id is remembered to drop duplicates
	DedupeWindow string `mapstructure:"dedupe_window" yaml:"dedupe_window"`

	// MaxConcurrentTransmits bounds parallel batch transmissions
	MaxConcurrentTransmits int `mapstructure:"max_concurrent_transmits" yaml:"max_concurrent_transmits"`

	// SpoolPath is the BoltDB file used to persist unsent items, empty disables it
	SpoolPath string `mapstructure:"spool_path" yaml:"spool_path"`

	// SpoolMaxAge is how long an unsent item may stay in the spool
	SpoolMaxAge string `mapstructure:"spool_max_age" yaml:"spool_max_age"`

	// SpoolPurgeSchedule is the cron schedule for purging expired spool entries
	SpoolPurgeSchedule string `mapstructure:"spool_purge_schedule" yaml:"spool_purge_schedule"`
}

// LoggingConfig configures the zap logger built by binaries.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Trace:   TraceConfig{SuppressTracing: false},
		Mapping: mapping.DefaultOptions(),
		Sink: SinkConfig{
			MaxQueueSize:           10000,
			MaxBatchSize:           100,
			FlushInterval:          "5s",
			DedupeWindow:           "1m",
			MaxConcurrentTransmits: 4,
			SpoolPath:              "",
			SpoolMaxAge:            "24h",
			SpoolPurgeSchedule:     "@hourly",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (cfg *Config) Validate() error {
	if err := cfg.Sink.Validate(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("%w: invalid logging level %q", ErrInvalidConfig, cfg.Logging.Level)
	}
	for _, prefix := range cfg.Mapping.ExcludedPrefixes {
		if strings.TrimSpace(prefix) == "" {
			return fmt.Errorf("%w: excluded_prefixes must not contain empty entries", ErrInvalidConfig)
		}
	}
	return nil
}

// Validate checks if the sink configuration is valid
func (cfg *SinkConfig) Validate() error {
	if cfg.MaxQueueSize <= 0 {
		return fmt.Errorf("%w: max_queue_size must be greater than 0, got %d", ErrInvalidConfig, cfg.MaxQueueSize)
	}

	if cfg.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max_batch_size must be greater than 0, got %d", ErrInvalidConfig, cfg.MaxBatchSize)
	}

	if cfg.MaxBatchSize > cfg.MaxQueueSize {
		return fmt.Errorf("%w: max_batch_size (%d) must not exceed max_queue_size (%d)", ErrInvalidConfig, cfg.MaxBatchSize, cfg.MaxQueueSize)
	}

	if cfg.MaxConcurrentTransmits <= 0 {
		return fmt.Errorf("%w: max_concurrent_transmits must be greater than 0, got %d", ErrInvalidConfig, cfg.MaxConcurrentTransmits)
	}

	if _, err := positiveDuration("flush_interval", cfg.FlushInterval); err != nil {
		return err
	}

	if _, err := positiveDuration("dedupe_window", cfg.DedupeWindow); err != nil {
		return err
	}

	if cfg.SpoolPath != "" {
		if _, err := positiveDuration("spool_max_age", cfg.SpoolMaxAge); err != nil {
			return err
		}
		if cfg.SpoolPurgeSchedule != "" {
			if _, err := cron.ParseStandard(cfg.SpoolPurgeSchedule); err != nil {
				return fmt.Errorf("%w: invalid spool_purge_schedule: %v", ErrInvalidConfig, err)
			}
		}
	}

	return nil
}

// FlushIntervalDuration returns the parsed flush interval.
func (cfg *SinkConfig) FlushIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.FlushInterval)
	return d
}

// DedupeWindowDuration returns the parsed dedupe window.
func (cfg *SinkConfig) DedupeWindowDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.DedupeWindow)
	return d
}

// SpoolMaxAgeDuration returns the parsed spool max age.
func (cfg *SinkConfig) SpoolMaxAgeDuration() time.Duration {
	d, _ := time.ParseDuration(cfg.SpoolMaxAge)
	return d
}

func positiveDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: %s must be specified", ErrInvalidConfig, name)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s format: %v", ErrInvalidConfig, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidConfig, name, value)
	}
	return d, nil
}

// NewLogger builds a zap logger for the configured level.
func (cfg *LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid logging level %q", ErrInvalidConfig, cfg.Level)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
