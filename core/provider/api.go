package provider

import (
	"sync"

	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/tracecontext"
)

// TraceAPI is the tracer facade bound to one host.
type TraceAPI struct {
	host SpanHost

	lock    sync.Mutex
	tracers map[string]*Tracer
}

// NewTraceAPI binds a trace API to h. It fails with *HostRequiredError when
// h is nil.
func NewTraceAPI(h SpanHost) (*TraceAPI, error) {
	if isNilHost(h) {
		return nil, &HostRequiredError{Component: "trace API"}
	}
	return &TraceAPI{
		host:    h,
		tracers: make(map[string]*Tracer),
	}, nil
}

func isNilHost(h SpanHost) bool {
	if h == nil {
		return true
	}
	if host, ok := h.(*Host); ok && host == nil {
		return true
	}
	return false
}

// Host returns the bound host.
func (a *TraceAPI) Host() SpanHost {
	return a.host
}

// Tracer returns the tracer registered under name, creating it on first use.
func (a *TraceAPI) Tracer(name string) *Tracer {
	a.lock.Lock()
	defer a.lock.Unlock()
	if t, ok := a.tracers[name]; ok {
		return t
	}
	t := &Tracer{name: name, host: a.host}
	a.tracers[name] = t
	return t
}

// ActiveSpan returns the active span of the host, or nil.
func (a *TraceAPI) ActiveSpan() *span.Span {
	return a.host.ActiveSpan(false)
}

// SetActiveSpan activates s on the host.
func (a *TraceAPI) SetActiveSpan(s *span.Span) *Scope {
	return a.host.SetActiveSpan(s)
}

// WrapSpanContext returns a non-recording span carrying ctx.
func (a *TraceAPI) WrapSpanContext(ctx *tracecontext.DistributedTraceContext) *span.Span {
	return WrapSpanContext(ctx)
}

// IsTracingSuppressed reports whether the host drops ended spans.
func (a *TraceAPI) IsTracingSuppressed() bool {
	return IsTracingSuppressed(a.host)
}

// Tracer starts spans on behalf of a named instrumentation.
type Tracer struct {
	name string
	host SpanHost
}

// Name returns the instrumentation name.
func (t *Tracer) Name() string {
	return t.name
}

// StartSpan starts a span on the tracer's host.
func (t *Tracer) StartSpan(name string, opts ...StartOption) *span.Span {
	return t.host.StartSpan(name, opts...)
}

// WrapSpanContext returns a non-recording span for a context received from
// elsewhere, for use as an explicit parent or active span.
func WrapSpanContext(ctx *tracecontext.DistributedTraceContext) *span.Span {
	return span.NewNonRecording(ctx)
}
