package tracecontext

import (
	"net/http"
	"strings"
)

const serverTimingDescParam = "desc"

// FromServerTiming scans Server-Timing header values for a "traceparent"
// metric and parses its desc parameter, for example:
//
//	Server-Timing: cache;dur=2, traceparent;desc="00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
func FromServerTiming(values ...string) *TraceParent {
	for _, value := range values {
		if len(value) > maxTraceParentLength {
			continue
		}
		for _, metric := range strings.Split(value, ",") {
			params := strings.Split(metric, ";")
			if !strings.EqualFold(strings.TrimSpace(params[0]), TraceParentHeader) {
				continue
			}
			for _, param := range params[1:] {
				name, desc, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(name), serverTimingDescParam) {
					continue
				}
				if tp := ParseTraceParent(strings.Trim(strings.TrimSpace(desc), `"`)); tp != nil {
					return tp
				}
			}
		}
	}
	return nil
}

// FromMetaContent parses the content attribute of a <meta name="traceparent"> tag.
func FromMetaContent(content string) *TraceParent {
	return ParseTraceParent(content)
}

// InjectHeader writes the traceparent header for ctx. Contexts without a
// claimed span id are not injected.
func InjectHeader(h http.Header, ctx *DistributedTraceContext) {
	if h == nil || !ctx.IsValid() {
		return
	}
	h.Set(TraceParentHeader, ctx.String())
}

// ExtractHeader reads the traceparent header and returns the context it
// describes, or nil when the header is missing or malformed.
func ExtractHeader(h http.Header) *DistributedTraceContext {
	if h == nil {
		return nil
	}
	tp := ParseTraceParentValues(h.Values(TraceParentHeader))
	if tp == nil {
		return nil
	}
	return Create(tp)
}
