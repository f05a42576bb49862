package tracecontext

import "strings"

// SpanContextReader is the structural shape of anything that carries trace
// identity. IsDistributedTraceContext uses it to tell a fully formed context
// apart from a raw init record.
type SpanContextReader interface {
	TraceID() string
	SpanID() string
}

// Init is a raw record used to seed a DistributedTraceContext.
type Init struct {
	TraceID    string
	SpanID     string
	TraceFlags *uint8
}

// Flags is a convenience for building an Init with trace flags set.
func Flags(f uint8) *uint8 {
	return &f
}

// DistributedTraceContext identifies a position in a distributed trace.
// Values are never mutated after creation; the With* helpers return copies.
type DistributedTraceContext struct {
	traceID  string
	spanID   string
	flags    uint8
	hasFlags bool
	parent   *DistributedTraceContext
}

// Create builds a new DistributedTraceContext from an optional seed.
//
// Accepted seeds are nil, *DistributedTraceContext, Init, *Init, TraceParent,
// *TraceParent and any SpanContextReader. A seed with a valid trace id is
// copied and remembered as the parent context. Anything else produces a new
// root context with a freshly generated trace id and an empty span id.
// Malformed span ids are dropped rather than rejected.
func Create(seed any) *DistributedTraceContext {
	var (
		traceID, spanID string
		flags           *uint8
	)

	switch s := seed.(type) {
	case nil:
	case *DistributedTraceContext:
		if s == nil {
			break
		}
		traceID, spanID = s.traceID, s.spanID
		if s.hasFlags {
			flags = Flags(s.flags)
		}
	case DistributedTraceContext:
		traceID, spanID = s.traceID, s.spanID
		if s.hasFlags {
			flags = Flags(s.flags)
		}
	case Init:
		traceID, spanID, flags = s.TraceID, s.SpanID, s.TraceFlags
	case *Init:
		if s != nil {
			traceID, spanID, flags = s.TraceID, s.SpanID, s.TraceFlags
		}
	case TraceParent:
		traceID, spanID, flags = s.TraceID, s.SpanID, s.flagsPtr()
	case *TraceParent:
		if s != nil {
			traceID, spanID, flags = s.TraceID, s.SpanID, s.flagsPtr()
		}
	case SpanContextReader:
		traceID, spanID = readIDs(s)
	}

	if !IsValidTraceID(traceID) {
		return &DistributedTraceContext{traceID: GenerateTraceID()}
	}

	parent := &DistributedTraceContext{traceID: strings.ToLower(traceID)}
	if IsValidSpanID(spanID) {
		parent.spanID = strings.ToLower(spanID)
	}
	if flags != nil {
		parent.flags, parent.hasFlags = *flags, true
	}

	ctx := *parent
	ctx.parent = parent
	return &ctx
}

// readIDs guards against typed nil receivers hiding behind the interface.
func readIDs(r SpanContextReader) (traceID, spanID string) {
	defer func() {
		if recover() != nil {
			traceID, spanID = "", ""
		}
	}()
	return r.TraceID(), r.SpanID()
}

// IsDistributedTraceContext reports whether v structurally looks like a trace
// context, that is it exposes both a trace id and a span id.
func IsDistributedTraceContext(v any) bool {
	switch c := v.(type) {
	case *DistributedTraceContext:
		return c != nil
	case DistributedTraceContext:
		return true
	case SpanContextReader:
		return c != nil
	}
	return false
}

// TraceID returns the 32 character trace id.
func (c *DistributedTraceContext) TraceID() string {
	if c == nil {
		return ""
	}
	return c.traceID
}

// SpanID returns the 16 character span id, or an empty string for a root
// context that no span has claimed yet.
func (c *DistributedTraceContext) SpanID() string {
	if c == nil {
		return ""
	}
	return c.spanID
}

// TraceFlags returns the trace flags and whether they were set.
func (c *DistributedTraceContext) TraceFlags() (uint8, bool) {
	if c == nil {
		return 0, false
	}
	return c.flags, c.hasFlags
}

// IsSampled reports whether the sampled bit is set.
func (c *DistributedTraceContext) IsSampled() bool {
	f, ok := c.TraceFlags()
	return ok && f&0x01 == 0x01
}

// ParentCtx returns the context this one was derived from, if any.
func (c *DistributedTraceContext) ParentCtx() *DistributedTraceContext {
	if c == nil {
		return nil
	}
	return c.parent
}

// IsValid reports whether both ids are present and well formed.
func (c *DistributedTraceContext) IsValid() bool {
	return c != nil && IsValidTraceID(c.traceID) && IsValidSpanID(c.spanID)
}

// WithSpanID returns a copy of the context carrying spanID. Invalid ids are ignored.
func (c *DistributedTraceContext) WithSpanID(spanID string) *DistributedTraceContext {
	if c == nil {
		return nil
	}
	cp := *c
	if IsValidSpanID(spanID) {
		cp.spanID = strings.ToLower(spanID)
	}
	return &cp
}

// WithTraceFlags returns a copy of the context carrying flags.
func (c *DistributedTraceContext) WithTraceFlags(flags uint8) *DistributedTraceContext {
	if c == nil {
		return nil
	}
	cp := *c
	cp.flags, cp.hasFlags = flags, true
	return &cp
}

// TraceParent renders the context as a W3C traceparent record.
func (c *DistributedTraceContext) TraceParent() *TraceParent {
	if c == nil {
		return nil
	}
	tp := &TraceParent{
		Version:    DefaultVersion,
		TraceID:    c.traceID,
		SpanID:     c.spanID,
		TraceFlags: 1,
	}
	if c.hasFlags {
		tp.TraceFlags = int(c.flags)
	}
	return tp
}

// String returns the traceparent form of the context.
func (c *DistributedTraceContext) String() string {
	if !c.IsValid() {
		return ""
	}
	return FormatTraceParent(c.TraceParent())
}
