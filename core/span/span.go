package span

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/tracecontext"
)

// EndFunc is invoked once when a recording span ends.
type EndFunc func(*Span)

// Event is a timestamped annotation on a span.
type Event struct {
	Name       string
	Time       time.Time
	Attributes *attributes.Container
}

// Span is a single timed operation. A span accepts mutations until End is
// called; afterwards every mutator is a no-op.
type Span struct {
	lock sync.Mutex

	name      string
	kind      Kind
	spanCtx   *tracecontext.DistributedTraceContext
	attrs     *attributes.Container
	status    Status
	events    []Event
	startTime time.Time
	endTime   time.Time

	recording bool
	ended     *atomic.Bool
	onEnd     EndFunc
	snapshot  *Snapshot
	initial   []map[string]any

	dropCounter *atomic.Int64
	logger      *zap.Logger
}

// Option configures a new Span.
type Option func(*Span)

// WithKind sets the span kind. Unknown kinds fall back to internal.
func WithKind(k Kind) Option {
	return func(s *Span) {
		if k.IsValid() {
			s.kind = k
		}
	}
}

// WithStartTime overrides the start time. A zero time means now.
func WithStartTime(t time.Time) Option {
	return func(s *Span) {
		if !t.IsZero() {
			s.startTime = t
		}
	}
}

// WithAttributes sets initial attributes.
func WithAttributes(attrs map[string]any) Option {
	return func(s *Span) {
		if attrs != nil {
			s.initial = append(s.initial, attrs)
		}
	}
}

// WithRecording controls whether the span records. Non-recording spans
// accept calls but store nothing and never invoke the end callback.
func WithRecording(recording bool) Option {
	return func(s *Span) {
		s.recording = recording
	}
}

// WithOnEnd sets the callback invoked when the span ends.
func WithOnEnd(fn EndFunc) Option {
	return func(s *Span) {
		s.onEnd = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Span) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDropCounter counts attributes the span rejects.
func WithDropCounter(counter *atomic.Int64) Option {
	return func(s *Span) {
		s.dropCounter = counter
	}
}

// New creates a span named name that owns ctx. A nil ctx, or one without a
// span id, is replaced by a fresh context.
func New(name string, ctx *tracecontext.DistributedTraceContext, opts ...Option) *Span {
	if ctx == nil {
		ctx = tracecontext.Create(nil)
	}
	if ctx.SpanID() == "" {
		ctx = ctx.WithSpanID(tracecontext.GenerateSpanID())
	}

	s := &Span{
		name:      name,
		kind:      KindInternal,
		spanCtx:   ctx,
		startTime: time.Now(),
		recording: true,
		ended:     atomic.NewBool(false),
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.attrs = attributes.New(attributes.WithLogger(s.logger), attributes.WithDropCounter(s.dropCounter))
	if s.recording {
		for _, attrs := range s.initial {
			s.attrs.SetAll(attrs)
		}
	}
	s.initial = nil
	return s
}

// NewNonRecording wraps an externally received context in a span that never
// records or emits telemetry.
func NewNonRecording(ctx *tracecontext.DistributedTraceContext) *Span {
	return New("", ctx, WithRecording(false))
}

// Name returns the current span name.
func (s *Span) Name() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.name
}

// Kind returns the span kind fixed at creation.
func (s *Span) Kind() Kind {
	return s.kind
}

// SpanContext returns the trace context captured at creation.
func (s *Span) SpanContext() *tracecontext.DistributedTraceContext {
	return s.spanCtx
}

// ParentSpanContext returns the context of the logical parent, or nil for a
// span that started a new trace.
func (s *Span) ParentSpanContext() *tracecontext.DistributedTraceContext {
	return s.spanCtx.ParentCtx()
}

// IsRecording reports whether the span still accepts data.
func (s *Span) IsRecording() bool {
	return s.recording && !s.ended.Load()
}

// Ended reports whether End has been called.
func (s *Span) Ended() bool {
	return s.ended.Load()
}

// SetAttribute sets a single attribute. Invalid keys or values are dropped.
func (s *Span) SetAttribute(key string, value any) {
	if !s.IsRecording() {
		return
	}
	s.attrs.Set(key, value)
}

// SetAttributes sets every entry of attrs. A nil map is a no-op.
func (s *Span) SetAttributes(attrs map[string]any) {
	if !s.IsRecording() {
		return
	}
	s.attrs.SetAll(attrs)
}

// Attributes returns the live attribute container. After End it is frozen.
func (s *Span) Attributes() *attributes.Container {
	return s.attrs
}

// SetStatus replaces the status. Unknown codes are ignored.
func (s *Span) SetStatus(code StatusCode, message string) {
	if !code.IsValid() || !s.IsRecording() {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.status = Status{Code: code, Message: message}
}

// Status returns the current status.
func (s *Span) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// UpdateName renames the span. An empty name is ignored.
func (s *Span) UpdateName(name string) {
	if name == "" || !s.IsRecording() {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.name = name
}

// AddEvent records a named event. A zero or missing time means now.
func (s *Span) AddEvent(name string, attrs map[string]any, t ...time.Time) {
	if !s.IsRecording() {
		return
	}
	ev := Event{
		Name:       name,
		Time:       timeOrNow(t),
		Attributes: attributes.New(attributes.WithLogger(s.logger), attributes.WithDropCounter(s.dropCounter)),
	}
	ev.Attributes.SetAll(attrs)
	ev.Attributes.Freeze()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.events = append(s.events, ev)
}

// StartTime returns when the span started.
func (s *Span) StartTime() time.Time {
	return s.startTime
}

// EndTime returns when the span ended, or the zero time while it is running.
func (s *Span) EndTime() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.endTime
}

// Duration returns the elapsed time of an ended span and the time elapsed so
// far for a running one.
func (s *Span) Duration() time.Duration {
	end := s.EndTime()
	if end.IsZero() {
		end = time.Now()
	}
	return clampDuration(end.Sub(s.startTime))
}

// End completes the span. Only the first call has any effect: it records the
// end time (now when omitted or zero), freezes the attributes and, if the
// span was recording, invokes the end callback exactly once.
func (s *Span) End(endTime ...time.Time) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}

	s.lock.Lock()
	s.endTime = timeOrNow(endTime)
	s.attrs.Freeze()
	s.snapshot = s.snapshotLocked()
	s.lock.Unlock()

	if s.recording && s.onEnd != nil {
		s.invokeOnEnd()
	}
}

func (s *Span) invokeOnEnd() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Span end callback panicked",
				zap.String("span_id", s.spanCtx.SpanID()),
				zap.Any("panic", r))
		}
	}()
	s.onEnd(s)
}

// Snapshot returns a read-only view of the span. For an ended span the view
// captured by the first End call is returned.
func (s *Span) Snapshot() *Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.snapshot != nil {
		return s.snapshot
	}
	return s.snapshotLocked()
}

func (s *Span) snapshotLocked() *Snapshot {
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return &Snapshot{
		Name:              s.name,
		Kind:              s.kind,
		SpanContext:       s.spanCtx,
		ParentContext:     s.spanCtx.ParentCtx(),
		Attributes:        s.attrs.Snapshot(),
		Status:            s.status,
		StartTime:         s.startTime,
		EndTime:           s.endTime,
		Events:            events,
		DroppedAttributes: s.attrs.Dropped(),
		Ended:             !s.endTime.IsZero(),
		Recording:         s.recording,
	}
}

func timeOrNow(t []time.Time) time.Time {
	if len(t) > 0 && !t[0].IsZero() {
		return t[0]
	}
	return time.Now()
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
