package provider

// SuppressTracing stops h from emitting telemetry for spans that end from
// now on. Spans are still created and may be used normally.
func SuppressTracing(h SpanHost) {
	if h != nil {
		h.TraceConfig().SetSuppressTracing(true)
	}
}

// UnsuppressTracing resumes emission for spans that end from now on.
func UnsuppressTracing(h SpanHost) {
	if h != nil {
		h.TraceConfig().SetSuppressTracing(false)
	}
}

// IsTracingSuppressed reports whether h currently drops ended spans.
func IsTracingSuppressed(h SpanHost) bool {
	return h != nil && h.TraceConfig().SuppressTracing()
}
