package provider

import (
	"time"

	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/config"
	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/tracecontext"
	"github.com/deepaksharma/spancore/internal/metrics"
)

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger used by the host and every span it starts.
func WithLogger(logger *zap.Logger) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSender sets the destination of mapped telemetry items.
func WithSender(sender Sender) HostOption {
	return func(h *Host) {
		h.sender = sender
	}
}

// WithMapper replaces the mapping engine built from the host configuration.
func WithMapper(mapper Mapper) HostOption {
	return func(h *Host) {
		h.mapper = mapper
	}
}

// WithMetrics sets the manager whose counters the host updates.
func WithMetrics(m *metrics.Manager) HostOption {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithConfig applies the trace and mapping sections of cfg.
func WithConfig(cfg *config.Config) HostOption {
	return func(h *Host) {
		if cfg != nil {
			h.config = cfg
		}
	}
}

// StartOption configures a span started through a host.
type StartOption func(*startConfig)

type startConfig struct {
	kind      span.Kind
	attrs     []map[string]any
	startTime time.Time
	root      bool
	recording bool
	parent    *tracecontext.DistributedTraceContext
}

func newStartConfig(opts []StartOption) *startConfig {
	cfg := &startConfig{
		kind:      span.KindInternal,
		recording: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithKind sets the span kind.
func WithKind(kind span.Kind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

// WithAttributes sets initial attributes. It may be given more than once.
func WithAttributes(attrs map[string]any) StartOption {
	return func(c *startConfig) {
		if attrs != nil {
			c.attrs = append(c.attrs, attrs)
		}
	}
}

// WithStartTime overrides the start time.
func WithStartTime(t time.Time) StartOption {
	return func(c *startConfig) {
		c.startTime = t
	}
}

// WithRoot starts a new trace, ignoring any explicit or ambient parent.
func WithRoot() StartOption {
	return func(c *startConfig) {
		c.root = true
	}
}

// WithRecording controls whether the span records. A non-recording span
// never produces telemetry.
func WithRecording(recording bool) StartOption {
	return func(c *startConfig) {
		c.recording = recording
	}
}

// WithParent sets an explicit parent context, which wins over the active span.
func WithParent(parent *tracecontext.DistributedTraceContext) StartOption {
	return func(c *startConfig) {
		c.parent = parent
	}
}
