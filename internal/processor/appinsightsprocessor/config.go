package appinsightsprocessor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/collector/component"

	"github.com/deepaksharma/spancore/core/config"
	"github.com/deepaksharma/spancore/core/mapping"
)

// Config defines configuration for the Application Insights translation
// processor.
type Config struct {
	// InstrumentationKey is written into every envelope
	InstrumentationKey string `mapstructure:"instrumentation_key"`

	// Endpoint is the ingestion URL envelopes are posted to
	Endpoint string `mapstructure:"endpoint"`

	// OutputPath writes envelopes as newline delimited JSON to a file instead
	// of posting them
	OutputPath string `mapstructure:"output_path"`

	// ExcludedPrefixes are attribute key prefixes never copied to properties
	ExcludedPrefixes []string `mapstructure:"excluded_prefixes"`

	// ExcludedKeys are exact attribute keys never copied to properties
	ExcludedKeys []string `mapstructure:"excluded_keys"`

	// Sink configures queueing, batching and the optional spool
	Sink config.SinkConfig `mapstructure:"sink"`
}

var _ component.Config = (*Config)(nil)

// Validate checks if the processor configuration is valid
func (cfg *Config) Validate() error {
	if cfg.Endpoint != "" && cfg.OutputPath != "" {
		return fmt.Errorf("endpoint and output_path are mutually exclusive")
	}

	if cfg.Endpoint == "" && cfg.OutputPath == "" {
		return fmt.Errorf("one of endpoint or output_path must be specified")
	}

	if cfg.Endpoint != "" && cfg.InstrumentationKey == "" {
		return fmt.Errorf("instrumentation_key must be specified when posting to an endpoint")
	}

	if cfg.InstrumentationKey != "" {
		if _, err := uuid.Parse(cfg.InstrumentationKey); err != nil {
			return fmt.Errorf("instrumentation_key must be a GUID: %w", err)
		}
	}

	for _, prefix := range cfg.ExcludedPrefixes {
		if strings.TrimSpace(prefix) == "" {
			return fmt.Errorf("excluded_prefixes must not contain empty entries")
		}
	}

	if err := cfg.Sink.Validate(); err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	return nil
}

func (cfg *Config) mappingOptions() mapping.Options {
	return mapping.Options{
		ExcludedPrefixes: cfg.ExcludedPrefixes,
		ExcludedKeys:     cfg.ExcludedKeys,
	}
}

// createDefaultConfig creates the default configuration for the processor.
func createDefaultConfig() component.Config {
	defaults := mapping.DefaultOptions()
	return &Config{
		InstrumentationKey: "",
		Endpoint:           "",
		OutputPath:         "/dev/stdout",
		ExcludedPrefixes:   defaults.ExcludedPrefixes,
		ExcludedKeys:       defaults.ExcludedKeys,
		Sink:               config.Default().Sink,
	}
}
