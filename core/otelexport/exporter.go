// Package otelexport plugs the mapping engine into the OpenTelemetry SDK so
// services instrumented with the SDK emit the same telemetry items as spans
// created through a span host.
package otelexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/mapping"
	"github.com/deepaksharma/spancore/core/provider"
	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/tracecontext"
	"github.com/deepaksharma/spancore/internal/metrics"
)

// ErrExporterStopped is returned by ExportSpans after Shutdown.
var ErrExporterStopped = errors.New("exporter is shut down")

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// Exporter is an sdktrace.SpanExporter that maps SDK spans into telemetry
// items and hands them to a sender.
type Exporter struct {
	mapper  provider.Mapper
	sender  provider.Sender
	metrics *metrics.Manager
	logger  *zap.Logger
	stopped *atomic.Bool
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMapper replaces the default mapping engine.
func WithMapper(m provider.Mapper) Option {
	return func(e *Exporter) {
		if m != nil {
			e.mapper = m
		}
	}
}

// WithMetrics sets the counters updated for every exported span.
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Exporter) {
		if m != nil {
			e.metrics = m
		}
	}
}

// New creates an exporter delivering items to sender.
func New(sender provider.Sender, opts ...Option) (*Exporter, error) {
	if sender == nil {
		return nil, errors.New("otelexport: sender is required")
	}
	e := &Exporter{
		sender:  sender,
		metrics: metrics.NewManager(),
		logger:  zap.NewNop(),
		stopped: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mapper == nil {
		e.mapper = mapping.NewEngine(mapping.DefaultOptions(), e.logger)
	}
	return e, nil
}

// ExportSpans maps and sends every span of the batch. Spans that cannot be
// mapped are counted and skipped.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return ErrExporterStopped
	}

	var (
		lastRes *resource.Resource
		tags    map[string]string
	)
	for _, ro := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.metrics.SpansEnded().Inc()

		snap := e.snapshot(ro)
		item, err := e.mapper.Map(snap)
		if err != nil {
			e.metrics.SpansUnmapped().Inc()
			e.logger.Warn("Failed to map exported span",
				zap.String("span_id", snap.SpanID()),
				zap.Error(err))
			continue
		}

		if res := ro.Resource(); res != lastRes {
			lastRes, tags = res, resourceTags(res)
		}
		mapping.ApplyResourceTags(item, tags)

		e.sender.Send(item)
		e.metrics.ItemsEmitted().Inc()
	}
	return nil
}

// Shutdown stops the exporter and flushes the sender when it supports it.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if !e.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if f, ok := e.sender.(provider.Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

func (e *Exporter) snapshot(ro sdktrace.ReadOnlySpan) *span.Snapshot {
	opts := []attributes.Option{
		attributes.WithLogger(e.logger),
		attributes.WithDropCounter(e.metrics.AttributesDropped()),
	}

	sc := ro.SpanContext()
	init := tracecontext.Init{
		TraceID:    sc.TraceID().String(),
		TraceFlags: tracecontext.Flags(uint8(sc.TraceFlags())),
	}
	if parent := ro.Parent(); parent.HasSpanID() {
		init.SpanID = parent.SpanID().String()
	}
	spanCtx := tracecontext.Create(init).WithSpanID(sc.SpanID().String())

	attrs := fromKeyValues(ro.Attributes(), opts...)
	events := make([]span.Event, 0, len(ro.Events()))
	for _, ev := range ro.Events() {
		events = append(events, span.Event{
			Name:       ev.Name,
			Time:       ev.Time,
			Attributes: fromKeyValues(ev.Attributes, opts...),
		})
	}

	snap := &span.Snapshot{
		Name:              ro.Name(),
		Kind:              kindFromOTel(ro.SpanKind()),
		SpanContext:       spanCtx,
		ParentContext:     spanCtx.ParentCtx(),
		Attributes:        attrs,
		Status:            span.Status{Code: statusFromOTel(ro.Status().Code), Message: ro.Status().Description},
		StartTime:         ro.StartTime(),
		EndTime:           ro.EndTime(),
		Events:            events,
		DroppedAttributes: int64(ro.DroppedAttributes()) + attrs.Dropped(),
		Recording:         true,
	}
	snap.Ended = !snap.EndTime.IsZero()
	return snap
}

func fromKeyValues(kvs []attribute.KeyValue, opts ...attributes.Option) *attributes.Container {
	c := attributes.New(opts...)
	for _, kv := range kvs {
		c.Set(string(kv.Key), kv.Value.AsInterface())
	}
	c.Freeze()
	return c
}

func resourceTags(res *resource.Resource) map[string]string {
	if res == nil {
		return nil
	}
	set := res.Set()
	return mapping.ResourceTags(func(key string) (string, bool) {
		v, ok := set.Value(attribute.Key(key))
		if !ok {
			return "", false
		}
		return v.Emit(), true
	})
}

func kindFromOTel(k trace.SpanKind) span.Kind {
	switch k {
	case trace.SpanKindServer:
		return span.KindServer
	case trace.SpanKindClient:
		return span.KindClient
	case trace.SpanKindProducer:
		return span.KindProducer
	case trace.SpanKindConsumer:
		return span.KindConsumer
	}
	return span.KindInternal
}

func statusFromOTel(c codes.Code) span.StatusCode {
	switch c {
	case codes.Ok:
		return span.StatusOK
	case codes.Error:
		return span.StatusError
	}
	return span.StatusUnset
}
