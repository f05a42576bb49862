package tracecontext

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

const (
	sampleTraceID     = "4bf92f3577b34da6a3ce929d0e0e4736"
	sampleSpanID      = "00f067aa0ba902b7"
	sampleTraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
)

func TestParseTraceParent(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected *TraceParent
	}{
		{
			name:     "valid sampled",
			value:    sampleTraceParent,
			expected: &TraceParent{Version: "00", TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: 1},
		},
		{
			name:     "upper case is normalized",
			value:    strings.ToUpper(sampleTraceParent),
			expected: &TraceParent{Version: "00", TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: 1},
		},
		{
			name:     "future version with extra fields",
			value:    "cc-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-00-what-the-future-holds",
			expected: &TraceParent{Version: "cc", TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: 0},
		},
		{
			name:     "surrounding whitespace",
			value:    "  " + sampleTraceParent + " ",
			expected: &TraceParent{Version: "00", TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: 1},
		},
		{name: "empty", value: ""},
		{name: "reserved version", value: "ff-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		{name: "zero trace id", value: "00-00000000000000000000000000000000-00f067aa0ba902b7-01"},
		{name: "zero span id", value: "00-4bf92f3577b34da6a3ce929d0e0e4736-0000000000000000-01"},
		{name: "short trace id", value: "00-4bf92f3577b34da6a3ce929d0e0e473-00f067aa0ba902b7-01"},
		{name: "non hex", value: "00-4bf92f3577b34da6a3ce929d0e0e473z-00f067aa0ba902b7-01"},
		{name: "missing flags", value: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7"},
		{name: "oversized", value: sampleTraceParent + "-" + strings.Repeat("a", maxTraceParentLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseTraceParent(tt.value))
		})
	}
}

func TestParseTraceParentSelectsFromList(t *testing.T) {
	second := "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-00"
	list := sampleTraceParent + "," + second

	tp := ParseTraceParent(list)
	require.NotNil(t, tp)
	assert.Equal(t, sampleSpanID, tp.SpanID, "default index should select the first entry")

	tp = ParseTraceParent(list, 1)
	require.NotNil(t, tp)
	assert.Equal(t, "b7ad6b7169203331", tp.SpanID)

	tp = ParseTraceParent(list, 5)
	require.NotNil(t, tp)
	assert.Equal(t, sampleSpanID, tp.SpanID, "out of range index should fall back to the first entry")

	tp = ParseTraceParentValues([]string{second, sampleTraceParent})
	require.NotNil(t, tp)
	assert.Equal(t, "b7ad6b7169203331", tp.SpanID, "only the first list element is used")

	assert.Nil(t, ParseTraceParentValues(nil))
}

func TestFormatTraceParent(t *testing.T) {
	assert.Equal(t, "", FormatTraceParent(nil))

	tp := &TraceParent{Version: "cc", TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: 3}
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-03", FormatTraceParent(tp),
		"future versions are downgraded")

	tp = &TraceParent{TraceID: strings.ToUpper(sampleTraceID), SpanID: sampleSpanID, TraceFlags: 999}
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", FormatTraceParent(tp),
		"invalid flags default to 01")

	assert.Empty(t, FormatTraceParent(&TraceParent{TraceID: "bad", SpanID: sampleSpanID, TraceFlags: 1}),
		"an invalid trace id is never replaced")
	assert.Empty(t, FormatTraceParent(&TraceParent{TraceID: sampleTraceID, SpanID: "", TraceFlags: 1}),
		"a missing span id is never replaced")
	assert.Empty(t, FormatTraceParent(&TraceParent{TraceID: sampleTraceID, SpanID: "0000000000000000"}))
}

func TestTraceParentRoundTrip(t *testing.T) {
	for flags := 0; flags <= 0xff; flags += 17 {
		tp := &TraceParent{Version: "00", TraceID: GenerateTraceID(), SpanID: GenerateSpanID(), TraceFlags: flags}
		assert.Equal(t, tp, ParseTraceParent(FormatTraceParent(tp)))
	}
}

func TestIDValidation(t *testing.T) {
	assert.True(t, IsValidTraceID(sampleTraceID))
	assert.True(t, IsValidTraceID(strings.ToUpper(sampleTraceID)))
	assert.False(t, IsValidTraceID(invalidTraceID))
	assert.False(t, IsValidTraceID(sampleTraceID[:31]))
	assert.False(t, IsValidTraceID(sampleTraceID[:31]+"g"))
	assert.True(t, IsValidSpanID(sampleSpanID))
	assert.False(t, IsValidSpanID(invalidSpanID))
	assert.False(t, IsValidSpanID(""))

	for i := 0; i < 100; i++ {
		assert.True(t, IsValidTraceID(GenerateTraceID()))
		assert.True(t, IsValidSpanID(GenerateSpanID()))
	}
}

func TestGeneratedIDsUseEveryNibble(t *testing.T) {
	spanLead := make(map[byte]struct{})
	traceVersionPos := make(map[byte]struct{})
	traceVariantPos := make(map[byte]struct{})
	for i := 0; i < 2000; i++ {
		spanID := GenerateSpanID()
		traceID := GenerateTraceID()
		spanLead[spanID[0]] = struct{}{}
		traceVersionPos[traceID[12]] = struct{}{}
		traceVariantPos[traceID[16]] = struct{}{}
	}

	// With 2000 samples every one of the 16 values shows up in practice;
	// fixed UUID version or variant bits would cap these at 1 or 4.
	assert.GreaterOrEqual(t, len(spanLead), 14, "leading span id nibble")
	assert.GreaterOrEqual(t, len(traceVersionPos), 14, "trace id character 12")
	assert.GreaterOrEqual(t, len(traceVariantPos), 14, "trace id character 16")
}

func TestIsValidTraceParentAndSampled(t *testing.T) {
	tp := ParseTraceParent(sampleTraceParent)
	assert.True(t, IsValidTraceParent(tp))
	assert.True(t, IsSampledFlag(tp))

	tp.TraceFlags = 0
	assert.False(t, IsSampledFlag(tp))

	tp.Version = "ff"
	assert.False(t, IsValidTraceParent(tp))
	assert.False(t, IsValidTraceParent(nil))
	assert.False(t, IsSampledFlag(nil))
}

func TestFromServerTiming(t *testing.T) {
	tp := FromServerTiming(`cache;dur=23.2, traceparent;desc="` + sampleTraceParent + `"`)
	require.NotNil(t, tp)
	assert.Equal(t, sampleTraceID, tp.TraceID)

	assert.Nil(t, FromServerTiming("cache;dur=23.2"))
	assert.Nil(t, FromServerTiming(`traceparent;desc="garbage"`))

	tp = FromServerTiming("db;dur=53", `traceparent;desc=`+sampleTraceParent)
	require.NotNil(t, tp, "later values and unquoted descriptions are accepted")
	assert.Equal(t, sampleSpanID, tp.SpanID)
}

func TestFromMetaContent(t *testing.T) {
	tp := FromMetaContent(sampleTraceParent)
	require.NotNil(t, tp)
	assert.Equal(t, sampleSpanID, tp.SpanID)
	assert.Nil(t, FromMetaContent("not a trace parent"))
}

func TestHeaderInjectExtract(t *testing.T) {
	h := http.Header{}
	InjectHeader(h, Create(nil))
	assert.Empty(t, h.Get(TraceParentHeader), "root contexts without a span id are not injected")

	ctx := Create(nil).WithSpanID(GenerateSpanID()).WithTraceFlags(1)
	InjectHeader(h, ctx)
	assert.Equal(t, ctx.String(), h.Get(TraceParentHeader))

	extracted := ExtractHeader(h)
	require.NotNil(t, extracted)
	assert.Equal(t, ctx.TraceID(), extracted.TraceID())
	assert.Equal(t, ctx.SpanID(), extracted.SpanID())
	assert.True(t, extracted.IsSampled())

	assert.Nil(t, ExtractHeader(http.Header{}))
	assert.Nil(t, ExtractHeader(nil))
}

func TestPropagatorInjectExtract(t *testing.T) {
	carrier := propagation.MapCarrier{}
	ctx := Create(Init{TraceID: sampleTraceID, SpanID: sampleSpanID, TraceFlags: Flags(1)})

	Inject(carrier, ctx)
	assert.Equal(t, sampleTraceParent, carrier.Get(TraceParentHeader))

	extracted := Extract(carrier)
	require.NotNil(t, extracted)
	assert.Equal(t, sampleTraceID, extracted.TraceID())
	assert.Equal(t, sampleSpanID, extracted.SpanID())

	assert.Nil(t, Extract(propagation.MapCarrier{}))
}
