// Package integration provides a framework for end to end testing of the
// appinsights processor against a fake ingestion endpoint.
package integration

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/component/componenttest"
	"go.opentelemetry.io/collector/consumer/consumertest"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/ptrace"
	"go.opentelemetry.io/collector/processor"
	"go.opentelemetry.io/collector/processor/processortest"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/deepaksharma/spancore/internal/processor/appinsightsprocessor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the subset of an ingested envelope the tests inspect.
type Envelope struct {
	Name string            `json:"name"`
	IKey string            `json:"iKey"`
	Tags map[string]string `json:"tags"`
	Data struct {
		BaseType string         `json:"baseType"`
		BaseData map[string]any `json:"baseData"`
	} `json:"data"`
}

// IngestionServer is a fake track endpoint that records every envelope it
// accepts. While failing is set it answers 400 and records nothing.
type IngestionServer struct {
	*httptest.Server

	lock      sync.Mutex
	envelopes []Envelope
	requests  *atomic.Int64
	failing   *atomic.Bool
}

// NewIngestionServer starts a fake ingestion endpoint.
func NewIngestionServer() *IngestionServer {
	s := &IngestionServer{
		requests: atomic.NewInt64(0),
		failing:  atomic.NewBool(false),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *IngestionServer) handle(w http.ResponseWriter, r *http.Request) {
	s.requests.Inc()
	if s.failing.Load() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	zr, err := gzip.NewReader(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer zr.Close()

	var batch []Envelope
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var env Envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		batch = append(batch, env)
	}

	s.lock.Lock()
	s.envelopes = append(s.envelopes, batch...)
	s.lock.Unlock()
	w.WriteHeader(http.StatusOK)
}

// SetFailing switches the server between rejecting and accepting batches.
func (s *IngestionServer) SetFailing(failing bool) {
	s.failing.Store(failing)
}

// Envelopes returns every accepted envelope.
func (s *IngestionServer) Envelopes() []Envelope {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Envelope(nil), s.envelopes...)
}

// Requests returns how many batches were posted, accepted or not.
func (s *IngestionServer) Requests() int64 {
	return s.requests.Load()
}

// ProcessorOption adjusts the processor configuration.
type ProcessorOption func(*appinsightsprocessor.Config)

// WithSpoolPath persists unsent envelopes in dir.
func WithSpoolPath(dir string) ProcessorOption {
	return func(cfg *appinsightsprocessor.Config) {
		cfg.Sink.SpoolPath = filepath.Join(dir, "spool.db")
	}
}

// WithFlushInterval sets the sink flush interval.
func WithFlushInterval(d time.Duration) ProcessorOption {
	return func(cfg *appinsightsprocessor.Config) {
		cfg.Sink.FlushInterval = d.String()
	}
}

// TestFramework wires a processor to an ingestion server.
type TestFramework struct {
	logger   *zap.Logger
	server   *IngestionServer
	next     *consumertest.TracesSink
	settings processor.Settings
}

// NewTestFramework creates a framework with its own ingestion server.
func NewTestFramework(t zaptest.TestingT) *TestFramework {
	logger := zaptest.NewLogger(t, zaptest.Level(zapcore.InfoLevel))
	settings := processortest.NewNopSettings(component.MustNewType("appinsights"))
	settings.Logger = logger
	return &TestFramework{
		logger:   logger,
		server:   NewIngestionServer(),
		next:     new(consumertest.TracesSink),
		settings: settings,
	}
}

// Server returns the ingestion server.
func (tf *TestFramework) Server() *IngestionServer { return tf.server }

// Next returns the consumer downstream of the processor.
func (tf *TestFramework) Next() *consumertest.TracesSink { return tf.next }

// Close stops the ingestion server.
func (tf *TestFramework) Close() { tf.server.Close() }

// StartProcessor creates and starts a processor posting to the server.
func (tf *TestFramework) StartProcessor(ctx context.Context, options ...ProcessorOption) (processor.Traces, error) {
	factory := appinsightsprocessor.NewFactory()
	cfg := factory.CreateDefaultConfig().(*appinsightsprocessor.Config)
	cfg.OutputPath = ""
	cfg.Endpoint = tf.server.URL
	cfg.InstrumentationKey = "00000000-0000-0000-0000-000000000000"
	cfg.Sink.FlushInterval = "100ms"
	for _, opt := range options {
		opt(cfg)
	}

	proc, err := factory.CreateTraces(ctx, tf.settings, cfg, tf.next)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}
	if err := proc.Start(ctx, componenttest.NewNopHost()); err != nil {
		return nil, fmt.Errorf("failed to start processor: %w", err)
	}
	return proc, nil
}

// GenerateTraces builds traceCount traces of one server span followed by
// spansPerTrace-1 HTTP client spans. Ids derive from offset so batches
// generated with different offsets never collide.
func GenerateTraces(offset, traceCount, spansPerTrace int) ptrace.Traces {
	traces := ptrace.NewTraces()
	rs := traces.ResourceSpans().AppendEmpty()
	rs.Resource().Attributes().PutStr("service.name", "frontend")
	rs.Resource().Attributes().PutStr("service.instance.id", "frontend-0")
	spans := rs.ScopeSpans().AppendEmpty().Spans()

	start := time.Now().Add(-time.Second)
	for i := offset; i < offset+traceCount; i++ {
		traceID := traceIDFor(i)
		for j := 0; j < spansPerTrace; j++ {
			sp := spans.AppendEmpty()
			sp.SetTraceID(traceID)
			sp.SetSpanID(spanIDFor(i, j))
			sp.SetStartTimestamp(pcommon.NewTimestampFromTime(start))
			sp.SetEndTimestamp(pcommon.NewTimestampFromTime(start.Add(50 * time.Millisecond)))

			attrs := sp.Attributes()
			if j == 0 {
				sp.SetName("GET /home")
				sp.SetKind(ptrace.SpanKindServer)
				attrs.PutStr("http.request.method", "GET")
				attrs.PutStr("url.full", "https://frontend.example.com/home")
				attrs.PutInt("http.response.status_code", 200)
				continue
			}
			sp.SetParentSpanID(spanIDFor(i, 0))
			sp.SetName("GET")
			sp.SetKind(ptrace.SpanKindClient)
			attrs.PutStr("http.request.method", "GET")
			attrs.PutStr("url.full", fmt.Sprintf("https://backend.example.com/items/%d", j))
			attrs.PutInt("http.response.status_code", 200)
		}
	}
	return traces
}

func traceIDFor(i int) pcommon.TraceID {
	var id pcommon.TraceID
	id[0] = 0xab
	id[12] = byte(i >> 24)
	id[13] = byte(i >> 16)
	id[14] = byte(i >> 8)
	id[15] = byte(i)
	return id
}

func spanIDFor(i, j int) pcommon.SpanID {
	var id pcommon.SpanID
	id[0] = 0xcd
	id[3] = byte(i >> 16)
	id[4] = byte(i >> 8)
	id[5] = byte(i)
	id[7] = byte(j + 1)
	return id
}
