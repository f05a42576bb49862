package tracecontext

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ToOTel converts ctx into an OpenTelemetry span context. The result is
// marked remote since it usually crosses a process boundary.
func ToOTel(ctx *DistributedTraceContext) trace.SpanContext {
	if ctx == nil {
		return trace.SpanContext{}
	}
	cfg := trace.SpanContextConfig{Remote: true}
	if tid, err := trace.TraceIDFromHex(ctx.TraceID()); err == nil {
		cfg.TraceID = tid
	}
	if sid, err := trace.SpanIDFromHex(ctx.SpanID()); err == nil {
		cfg.SpanID = sid
	}
	if flags, ok := ctx.TraceFlags(); ok {
		cfg.TraceFlags = trace.TraceFlags(flags)
	}
	return trace.NewSpanContext(cfg)
}

// FromOTel converts an OpenTelemetry span context. Invalid span contexts
// produce a new root context.
func FromOTel(sc trace.SpanContext) *DistributedTraceContext {
	if !sc.HasTraceID() {
		return Create(nil)
	}
	init := Init{TraceID: sc.TraceID().String(), TraceFlags: Flags(uint8(sc.TraceFlags()))}
	if sc.HasSpanID() {
		init.SpanID = sc.SpanID().String()
	}
	return Create(init)
}

// ContextWithRemote stores ctx in a context.Context as a remote OpenTelemetry
// span context so OTel instrumented code downstream continues the same trace.
func ContextWithRemote(parent context.Context, ctx *DistributedTraceContext) context.Context {
	return trace.ContextWithRemoteSpanContext(parent, ToOTel(ctx))
}

// FromContext reads the OpenTelemetry span context held by ctx, returning nil
// when there is none.
func FromContext(ctx context.Context) *DistributedTraceContext {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return FromOTel(sc)
}

// Inject writes ctx into carrier using the W3C trace context propagator.
func Inject(carrier propagation.TextMapCarrier, ctx *DistributedTraceContext) {
	if carrier == nil || !ctx.IsValid() {
		return
	}
	propagation.TraceContext{}.Inject(ContextWithRemote(context.Background(), ctx), carrier)
}

// Extract reads a trace context from carrier using the W3C trace context
// propagator, returning nil when none is present.
func Extract(carrier propagation.TextMapCarrier) *DistributedTraceContext {
	if carrier == nil {
		return nil
	}
	return FromContext(propagation.TraceContext{}.Extract(context.Background(), carrier))
}
