package span

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/deepaksharma/spancore/core/tracecontext"
)

func newTestSpan(t *testing.T, opts ...Option) (*Span, *[]*Span) {
	t.Helper()
	var ended []*Span
	opts = append([]Option{WithOnEnd(func(s *Span) { ended = append(ended, s) })}, opts...)
	return New("test-span", nil, opts...), &ended
}

func TestNewSpanDefaults(t *testing.T) {
	s, _ := newTestSpan(t)

	assert.Equal(t, "test-span", s.Name())
	assert.Equal(t, KindInternal, s.Kind())
	assert.True(t, s.IsRecording())
	assert.False(t, s.Ended())
	assert.True(t, tracecontext.IsValidTraceID(s.SpanContext().TraceID()))
	assert.True(t, tracecontext.IsValidSpanID(s.SpanContext().SpanID()), "a span always claims a span id")
	assert.Nil(t, s.ParentSpanContext())
	assert.Equal(t, StatusUnset, s.Status().Code)
	assert.WithinDuration(t, time.Now(), s.StartTime(), time.Second)
}

func TestEndIsIdempotent(t *testing.T) {
	s, ended := newTestSpan(t)
	s.SetAttribute("k", "v")

	first := time.Now().Add(time.Second)
	s.End(first)
	s.SetAttribute("late", true)
	s.End(first.Add(time.Hour))
	s.End()

	require.Len(t, *ended, 1, "end callback must fire exactly once")
	assert.True(t, s.Ended())
	assert.False(t, s.IsRecording())
	assert.Equal(t, first, s.EndTime(), "end time comes from the first call")

	snap := s.Snapshot()
	assert.True(t, snap.Ended)
	assert.Equal(t, 1, snap.Attributes.Len())
	assert.False(t, snap.Attributes.Has("late"), "mutations after end are ignored")
	assert.Same(t, snap, s.Snapshot(), "snapshot is captured once at end")
}

func TestEndWithZeroTimeUsesNow(t *testing.T) {
	s, _ := newTestSpan(t)
	s.End(time.Time{})
	assert.WithinDuration(t, time.Now(), s.EndTime(), time.Second)
}

func TestNonRecordingSpan(t *testing.T) {
	s, ended := newTestSpan(t, WithRecording(false), WithAttributes(map[string]any{"a": 1}))

	assert.False(t, s.IsRecording())
	s.SetAttribute("k", "v")
	s.SetAttributes(map[string]any{"x": 1})
	s.SetStatus(StatusError, "boom")
	s.UpdateName("renamed")
	s.RecordException(errors.New("ignored"))
	s.End()

	assert.Empty(t, *ended, "non-recording spans never emit")
	assert.Equal(t, 0, s.Attributes().Len(), "attributes are always dropped")
	assert.Equal(t, StatusUnset, s.Status().Code)
	assert.Equal(t, "test-span", s.Name())
	assert.True(t, s.Ended())
}

func TestNewNonRecordingWrapsContext(t *testing.T) {
	ctx := tracecontext.Create(tracecontext.Init{TraceID: tracecontext.GenerateTraceID(), SpanID: tracecontext.GenerateSpanID()})
	s := NewNonRecording(ctx)
	assert.False(t, s.IsRecording())
	assert.Same(t, ctx, s.SpanContext())
}

func TestSetStatusAndUpdateName(t *testing.T) {
	s, _ := newTestSpan(t)

	s.SetStatus(StatusOK, "")
	s.SetStatus(StatusCode(42), "ignored")
	assert.Equal(t, StatusOK, s.Status().Code, "unknown codes keep the previous status")

	s.SetStatus(StatusError, "failed")
	assert.Equal(t, Status{Code: StatusError, Message: "failed"}, s.Status(), "last write wins")

	s.UpdateName("")
	assert.Equal(t, "test-span", s.Name())
	s.UpdateName("renamed")
	assert.Equal(t, "renamed", s.Name())
}

func TestAttributesAreValidated(t *testing.T) {
	counter := atomic.NewInt64(0)
	s, _ := newTestSpan(t,
		WithDropCounter(counter),
		WithAttributes(map[string]any{"init": "yes", "bad": struct{}{}}))

	s.SetAttribute("ok", 1)
	s.SetAttribute("", "no key")
	s.SetAttribute("obj", map[string]int{"a": 1})
	s.SetAttributes(nil)

	assert.Equal(t, 2, s.Attributes().Len())
	assert.True(t, s.Attributes().Has("init"))
	assert.True(t, s.Attributes().Has("ok"))
	assert.Equal(t, int64(3), counter.Load())
	assert.Equal(t, int64(3), s.Snapshot().DroppedAttributes)
}

func TestKindOption(t *testing.T) {
	s := New("client", nil, WithKind(KindClient))
	assert.Equal(t, KindClient, s.Kind())

	s = New("bogus", nil, WithKind(Kind(99)))
	assert.Equal(t, KindInternal, s.Kind())
}

func TestSpanKeepsParentContext(t *testing.T) {
	parent := New("parent", nil)
	childCtx := tracecontext.Create(parent.SpanContext()).WithSpanID(tracecontext.GenerateSpanID())
	child := New("child", childCtx)

	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	assert.NotEqual(t, parent.SpanContext().SpanID(), child.SpanContext().SpanID())
	require.NotNil(t, child.ParentSpanContext())
	assert.Equal(t, parent.SpanContext().SpanID(), child.ParentSpanContext().SpanID())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Snapshot().ParentSpanID())
}

func TestEndCallbackPanicIsContained(t *testing.T) {
	s := New("panicky", nil, WithOnEnd(func(*Span) { panic("sender exploded") }))
	assert.NotPanics(t, func() { s.End() })
	assert.True(t, s.Ended())
}

func TestSnapshotDuration(t *testing.T) {
	start := time.Now()
	s := New("timed", nil, WithStartTime(start))
	s.End(start.Add(1500 * time.Millisecond))

	snap := s.Snapshot()
	assert.Equal(t, 1500*time.Millisecond, snap.Duration())
	assert.Equal(t, 1500*time.Millisecond, s.Duration())

	s = New("backwards", nil, WithStartTime(start))
	s.End(start.Add(-time.Second))
	assert.Equal(t, time.Duration(0), s.Snapshot().Duration(), "negative durations are clamped")
}

func TestAddEvent(t *testing.T) {
	s, _ := newTestSpan(t)
	at := time.Now()
	s.AddEvent("cache.miss", map[string]any{"key": "user:1"}, at)
	s.End()

	snap := s.Snapshot()
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "cache.miss", snap.Events[0].Name)
	assert.Equal(t, at, snap.Events[0].Time)
	v, ok := snap.Events[0].Attributes.Get("key")
	require.True(t, ok)
	assert.Equal(t, "user:1", v.Str())
}
