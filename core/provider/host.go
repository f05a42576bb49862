// Package provider implements the span host: it starts spans, tracks the
// active span of the host and turns ended spans into telemetry items.
//
// The active span is a single slot per host, not a goroutine-local value.
// Activation nests as a stack only when every Scope is restored in reverse
// order of activation. Work started on another goroutine does not inherit
// the active span; pass the span explicitly with WithParent or wrap the work
// with WithSpan.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/config"
	"github.com/deepaksharma/spancore/core/mapping"
	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/telemetry"
	"github.com/deepaksharma/spancore/core/tracecontext"
	"github.com/deepaksharma/spancore/internal/metrics"
)

// Sender receives every mapped telemetry item exactly once.
type Sender interface {
	Send(item *telemetry.Item)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(item *telemetry.Item)

// Send calls f(item).
func (f SenderFunc) Send(item *telemetry.Item) {
	f(item)
}

// Flusher is implemented by senders that buffer items.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Mapper converts an ended span into a telemetry item.
type Mapper interface {
	Map(s *span.Snapshot) (*telemetry.Item, error)
}

// SpanHost is the contract the scope helpers and the trace API rely on.
type SpanHost interface {
	StartSpan(name string, opts ...StartOption) *span.Span
	ActiveSpan(createNew bool) *span.Span
	SetActiveSpan(s *span.Span) *Scope
	TraceCtx(createNew bool) *tracecontext.DistributedTraceContext
	SetTraceCtx(ctx *tracecontext.DistributedTraceContext)
	TraceConfig() *TraceConfig
}

// TraceConfig holds the trace settings a host reads at span end.
type TraceConfig struct {
	suppressTracing *atomic.Bool
}

func newTraceConfig(suppress bool) *TraceConfig {
	return &TraceConfig{suppressTracing: atomic.NewBool(suppress)}
}

// SuppressTracing reports whether ended spans are currently dropped.
func (c *TraceConfig) SuppressTracing() bool {
	return c != nil && c.suppressTracing.Load()
}

// SetSuppressTracing turns suppression on or off.
func (c *TraceConfig) SetSuppressTracing(suppress bool) {
	if c != nil {
		c.suppressTracing.Store(suppress)
	}
}

// Host owns the active span slot, the trace context mirror and the path from
// ended spans to the sender. Hosts are independent of each other.
type Host struct {
	lock     sync.Mutex
	active   *span.Span
	traceCtx *tracecontext.DistributedTraceContext

	placeholder *span.Span
	traceCfg    *TraceConfig

	config  *config.Config
	mapper  Mapper
	sender  Sender
	metrics *metrics.Manager
	logger  *zap.Logger
}

var _ SpanHost = (*Host)(nil)

// NewHost creates a host. Without WithSender, mapped items are discarded.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		config:  config.Default(),
		metrics: metrics.NewManager(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.traceCfg = newTraceConfig(h.config.Trace.SuppressTracing)
	if h.mapper == nil {
		h.mapper = mapping.NewEngine(h.config.Mapping, h.logger)
	}
	h.placeholder = span.NewNonRecording(tracecontext.Create(nil))
	return h
}

// Metrics returns the counters updated by the host.
func (h *Host) Metrics() *metrics.Manager {
	return h.metrics
}

// TraceConfig returns the live trace settings.
func (h *Host) TraceConfig() *TraceConfig {
	if h == nil {
		return nil
	}
	return h.traceCfg
}

// StartSpan starts a span. The parent is, in order of precedence: none when
// WithRoot is given, the WithParent context, the active span, the host trace
// context. Without any of those the span starts a new trace.
func (h *Host) StartSpan(name string, opts ...StartOption) *span.Span {
	cfg := newStartConfig(opts)

	var parent *tracecontext.DistributedTraceContext
	if !cfg.root {
		parent = h.resolveParent(cfg.parent)
	}

	ctx := tracecontext.Create(parent)
	ctx = ctx.WithSpanID(newSpanID(ctx.SpanID()))

	spanOpts := []span.Option{
		span.WithKind(cfg.kind),
		span.WithRecording(cfg.recording),
		span.WithLogger(h.logger),
		span.WithDropCounter(h.metrics.AttributesDropped()),
		span.WithStartTime(cfg.startTime),
	}
	for _, attrs := range cfg.attrs {
		spanOpts = append(spanOpts, span.WithAttributes(attrs))
	}
	if cfg.recording {
		spanOpts = append(spanOpts, span.WithOnEnd(h.onSpanEnd))
	}

	s := span.New(name, ctx, spanOpts...)
	h.metrics.SpansStarted().Inc()

	h.logger.Debug("Started span",
		zap.String("name", name),
		zap.String("trace_id", ctx.TraceID()),
		zap.String("span_id", ctx.SpanID()),
		zap.Bool("recording", cfg.recording))
	return s
}

func (h *Host) resolveParent(explicit *tracecontext.DistributedTraceContext) *tracecontext.DistributedTraceContext {
	if explicit != nil {
		return explicit
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if h.active != nil {
		return h.active.SpanContext()
	}
	return h.traceCtx
}

// newSpanID returns a span id different from parentID.
func newSpanID(parentID string) string {
	id := tracecontext.GenerateSpanID()
	for id == parentID {
		id = tracecontext.GenerateSpanID()
	}
	return id
}

func (h *Host) onSpanEnd(s *span.Span) {
	h.metrics.SpansEnded().Inc()

	if h.traceCfg.SuppressTracing() {
		h.metrics.SpansSuppressed().Inc()
		h.logger.Debug("Tracing suppressed, dropping ended span",
			zap.String("name", s.Name()),
			zap.String("span_id", s.SpanContext().SpanID()))
		return
	}

	item, err := h.mapper.Map(s.Snapshot())
	if err != nil {
		h.metrics.SpansUnmapped().Inc()
		h.logger.Warn("Failed to map ended span",
			zap.String("name", s.Name()),
			zap.Error(err))
		return
	}

	if h.sender == nil {
		return
	}
	h.sender.Send(item)
	h.metrics.ItemsEmitted().Inc()
}

// ActiveSpan returns the active span. When no span is active it returns nil
// if createNew is false, otherwise a non-recording placeholder span owned by
// the host.
func (h *Host) ActiveSpan(createNew bool) *span.Span {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.active != nil {
		return h.active
	}
	if !createNew {
		return nil
	}
	return h.placeholder
}

// SetActiveSpan makes s the active span and mirrors its context as the host
// trace context. A nil span clears both. The returned Scope puts the
// previous values back.
func (h *Host) SetActiveSpan(s *span.Span) *Scope {
	h.lock.Lock()
	prev, prevCtx := h.active, h.traceCtx
	h.active = s
	if s != nil {
		h.traceCtx = s.SpanContext()
	} else {
		h.traceCtx = nil
	}
	h.lock.Unlock()

	return NewScope(h, s, func() {
		h.lock.Lock()
		h.active, h.traceCtx = prev, prevCtx
		h.lock.Unlock()
	})
}

// TraceCtx returns the host trace context. When none is set and createNew is
// true a new root context is created and stored.
func (h *Host) TraceCtx(createNew bool) *tracecontext.DistributedTraceContext {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.traceCtx == nil && createNew {
		h.traceCtx = tracecontext.Create(nil)
	}
	return h.traceCtx
}

// SetTraceCtx replaces the host trace context. Nil clears it.
func (h *Host) SetTraceCtx(ctx *tracecontext.DistributedTraceContext) {
	h.lock.Lock()
	h.traceCtx = ctx
	h.lock.Unlock()
}

// SeedTraceParent adopts a parsed traceparent as the host trace context so
// that new spans continue the remote trace. Invalid records are ignored.
func (h *Host) SeedTraceParent(tp *tracecontext.TraceParent) bool {
	if !tracecontext.IsValidTraceParent(tp) {
		return false
	}
	h.SetTraceCtx(tracecontext.Create(tp))
	return true
}

// SeedFromHeader adopts the traceparent request header.
func (h *Host) SeedFromHeader(header http.Header) bool {
	ctx := tracecontext.ExtractHeader(header)
	if ctx == nil {
		return false
	}
	h.SetTraceCtx(ctx)
	return true
}

// SeedFromServerTiming adopts a traceparent sent in a Server-Timing header.
func (h *Host) SeedFromServerTiming(values ...string) bool {
	return h.SeedTraceParent(tracecontext.FromServerTiming(values...))
}

// SeedFromMeta adopts the content of a traceparent meta tag.
func (h *Host) SeedFromMeta(content string) bool {
	return h.SeedTraceParent(tracecontext.FromMetaContent(content))
}

// Unload clears the active span and the trace context, then flushes the
// sender when it buffers items.
func (h *Host) Unload(ctx context.Context) error {
	h.lock.Lock()
	h.active = nil
	h.traceCtx = nil
	h.lock.Unlock()

	if f, ok := h.sender.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush sender: %w", err)
		}
	}
	return nil
}
