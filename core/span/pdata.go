package span

import (
	"encoding/hex"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/tracecontext"
)

// SnapshotFromPData builds a snapshot from a collector span so that spans
// received over OTLP run through the same mapping as locally created ones.
func SnapshotFromPData(sp ptrace.Span, opts ...attributes.Option) *Snapshot {
	init := tracecontext.Init{
		TraceID:    traceIDToHex(sp.TraceID()),
		SpanID:     spanIDToHex(sp.ParentSpanID()),
		TraceFlags: tracecontext.Flags(uint8(sp.Flags() & 0xff)),
	}
	spanCtx := tracecontext.Create(init).WithSpanID(spanIDToHex(sp.SpanID()))

	attrs := attributes.FromPData(sp.Attributes(), opts...)
	attrs.Freeze()

	events := make([]Event, 0, sp.Events().Len())
	for i := 0; i < sp.Events().Len(); i++ {
		ev := sp.Events().At(i)
		evAttrs := attributes.FromPData(ev.Attributes(), opts...)
		evAttrs.Freeze()
		events = append(events, Event{
			Name:       ev.Name(),
			Time:       ev.Timestamp().AsTime(),
			Attributes: evAttrs,
		})
	}

	snap := &Snapshot{
		Name:              sp.Name(),
		Kind:              KindFromPData(sp.Kind()),
		SpanContext:       spanCtx,
		ParentContext:     spanCtx.ParentCtx(),
		Attributes:        attrs,
		Status:            Status{Code: StatusCodeFromPData(sp.Status().Code()), Message: sp.Status().Message()},
		Events:            events,
		DroppedAttributes: int64(sp.DroppedAttributesCount()) + attrs.Dropped(),
		Recording:         true,
	}
	if sp.StartTimestamp() != 0 {
		snap.StartTime = sp.StartTimestamp().AsTime()
	}
	if sp.EndTimestamp() != 0 {
		snap.EndTime = sp.EndTimestamp().AsTime()
		snap.Ended = true
	}
	return snap
}

// ToPData writes the snapshot into a collector span.
func (s *Snapshot) ToPData(dest ptrace.Span) {
	dest.SetName(s.Name)
	dest.SetKind(s.Kind.PData())
	dest.SetTraceID(traceIDFromHex(s.TraceID()))
	dest.SetSpanID(spanIDFromHex(s.SpanID()))
	dest.SetParentSpanID(spanIDFromHex(s.ParentSpanID()))
	if flags, ok := s.SpanContext.TraceFlags(); ok {
		dest.SetFlags(uint32(flags))
	}
	dest.SetStartTimestamp(pcommon.NewTimestampFromTime(s.StartTime))
	if !s.EndTime.IsZero() {
		dest.SetEndTimestamp(pcommon.NewTimestampFromTime(s.EndTime))
	}
	dest.Status().SetCode(s.Status.Code.PData())
	dest.Status().SetMessage(s.Status.Message)
	if s.Attributes != nil {
		s.Attributes.CopyTo(dest.Attributes())
	}
	dest.SetDroppedAttributesCount(uint32(s.DroppedAttributes))

	for _, ev := range s.Events {
		pev := dest.Events().AppendEmpty()
		pev.SetName(ev.Name)
		pev.SetTimestamp(pcommon.NewTimestampFromTime(ev.Time))
		if ev.Attributes != nil {
			ev.Attributes.CopyTo(pev.Attributes())
		}
	}
}

func traceIDToHex(id pcommon.TraceID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

func spanIDToHex(id pcommon.SpanID) string {
	if id.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(id[:])
}

func traceIDFromHex(s string) pcommon.TraceID {
	var id pcommon.TraceID
	if b, err := hex.DecodeString(s); err == nil && len(b) == len(id) {
		copy(id[:], b)
	}
	return id
}

func spanIDFromHex(s string) pcommon.SpanID {
	var id pcommon.SpanID
	if b, err := hex.DecodeString(s); err == nil && len(b) == len(id) {
		copy(id[:], b)
	}
	return id
}
