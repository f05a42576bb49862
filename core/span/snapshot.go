package span

import (
	"time"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/tracecontext"
)

// Snapshot is a read-only copy of a span, taken when the span ends. The
// mapping engine and exporters consume snapshots rather than live spans.
type Snapshot struct {
	Name              string
	Kind              Kind
	SpanContext       *tracecontext.DistributedTraceContext
	ParentContext     *tracecontext.DistributedTraceContext
	Attributes        *attributes.Container
	Status            Status
	StartTime         time.Time
	EndTime           time.Time
	Events            []Event
	DroppedAttributes int64
	Ended             bool
	Recording         bool
}

// Duration returns the span duration, never negative.
func (s *Snapshot) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return clampDuration(s.EndTime.Sub(s.StartTime))
}

// TraceID returns the trace id of the span.
func (s *Snapshot) TraceID() string {
	return s.SpanContext.TraceID()
}

// SpanID returns the span id of the span.
func (s *Snapshot) SpanID() string {
	return s.SpanContext.SpanID()
}

// ParentSpanID returns the parent span id, or "" when no parent was captured.
func (s *Snapshot) ParentSpanID() string {
	return s.ParentContext.SpanID()
}
