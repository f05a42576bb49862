package tracecontext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// TraceParentHeader is the W3C header carrying the trace parent
	TraceParentHeader = "traceparent"
	// TraceStateHeader is the W3C header carrying vendor trace state
	TraceStateHeader = "tracestate"

	// DefaultVersion is the only version ever emitted by FormatTraceParent
	DefaultVersion = "00"
	// DefaultFlags is used when the trace flags are missing or out of range
	DefaultFlags = "01"

	invalidVersion = "ff"

	// maxTraceParentLength guards the regular expression against oversized input
	maxTraceParentLength = 8192
)

var traceParentRegex = regexp.MustCompile(`(?i)^([0-9a-f]{2})-([0-9a-f]{32})-([0-9a-f]{16})-([0-9a-f]{2})(-.{1,64})?$`)

// TraceParent is a parsed W3C traceparent value.
//
// Format: version-trace_id-parent_id-trace_flags
//   - version: 2 hex digits
//   - trace_id: 32 hex digits (128-bit)
//   - parent_id: 16 hex digits (64-bit)
//   - trace_flags: 2 hex digits (8-bit)
//
// Example: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
type TraceParent struct {
	Version    string
	TraceID    string
	SpanID     string
	TraceFlags int
}

func (tp TraceParent) flagsPtr() *uint8 {
	if tp.TraceFlags < 0 || tp.TraceFlags > 0xff {
		return nil
	}
	return Flags(uint8(tp.TraceFlags))
}

// ParseTraceParent parses a traceparent value. When value holds a comma
// separated list the entry at selectIdx (default 0) is used, falling back to
// the first entry when the index is out of range. Returns nil when the value
// does not match the W3C grammar, uses the reserved ff version or carries an
// all zero trace or span id. Matched fields are normalized to lower case.
func ParseTraceParent(value string, selectIdx ...int) *TraceParent {
	if value == "" || len(value) > maxTraceParentLength {
		return nil
	}

	if strings.Contains(value, ",") {
		values := strings.Split(value, ",")
		idx := 0
		if len(selectIdx) > 0 && selectIdx[0] > 0 && selectIdx[0] < len(values) {
			idx = selectIdx[0]
		}
		value = values[idx]
	}

	match := traceParentRegex.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return nil
	}

	version := strings.ToLower(match[1])
	traceID := strings.ToLower(match[2])
	spanID := strings.ToLower(match[3])
	if version == invalidVersion || traceID == invalidTraceID || spanID == invalidSpanID {
		return nil
	}

	flags, err := strconv.ParseUint(match[4], 16, 8)
	if err != nil {
		return nil
	}

	return &TraceParent{
		Version:    version,
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: int(flags),
	}
}

// ParseTraceParentValues parses a list delivered traceparent, as returned by
// http.Header.Values. Only the first element is considered.
func ParseTraceParentValues(values []string, selectIdx ...int) *TraceParent {
	if len(values) == 0 {
		return nil
	}
	return ParseTraceParent(values[0], selectIdx...)
}

// FormatTraceParent renders tp as a traceparent string. The version is always
// emitted as 00 and out of range flags become 01. A nil record, or one
// without a valid trace id and span id, formats as an empty string.
func FormatTraceParent(tp *TraceParent) string {
	if tp == nil {
		return ""
	}

	if !IsValidTraceID(tp.TraceID) || !IsValidSpanID(tp.SpanID) {
		return ""
	}

	return fmt.Sprintf("%s-%s-%s-%s",
		DefaultVersion,
		strings.ToLower(tp.TraceID),
		strings.ToLower(tp.SpanID),
		formatFlags(tp.TraceFlags))
}

func formatFlags(flags int) string {
	if flags < 0 || flags > 0xff {
		return DefaultFlags
	}
	return fmt.Sprintf("%02x", flags)
}

// IsValidTraceParent reports whether tp is a complete, well formed record.
func IsValidTraceParent(tp *TraceParent) bool {
	if tp == nil {
		return false
	}
	if len(tp.Version) != 2 || !isHexString(tp.Version) || strings.ToLower(tp.Version) == invalidVersion {
		return false
	}
	return IsValidTraceID(tp.TraceID) && IsValidSpanID(tp.SpanID) && tp.TraceFlags >= 0 && tp.TraceFlags <= 0xff
}

// IsSampledFlag reports whether the sampled bit of the record is set.
func IsSampledFlag(tp *TraceParent) bool {
	return tp != nil && tp.TraceFlags >= 0 && tp.TraceFlags&0x01 == 0x01
}
