package mapping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/telemetry"
	"github.com/deepaksharma/spancore/core/tracecontext"
)

func endedSpan(name string, kind span.Kind, attrs map[string]any, status ...span.StatusCode) *span.Snapshot {
	s := span.New(name, nil, span.WithKind(kind), span.WithAttributes(attrs))
	if len(status) > 0 {
		s.SetStatus(status[0], "")
	}
	s.End()
	return s.Snapshot()
}

func mapSpan(t *testing.T, snap *span.Snapshot) *telemetry.Item {
	t.Helper()
	item, err := NewEngine(DefaultOptions(), zap.NewNop()).Map(snap)
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

func TestHTTPDependency(t *testing.T) {
	item := mapSpan(t, endedSpan("outbound", span.KindClient, map[string]any{
		"http.method":      "POST",
		"http.url":         "https://api.example.com/v1/users",
		"http.status_code": 201,
	}))

	require.NotNil(t, item.Dependency)
	assert.Equal(t, telemetry.DependencyBaseType, item.BaseType)
	assert.Equal(t, TypeHTTP, item.Dependency.Type)
	assert.Equal(t, "POST /v1/users", item.Dependency.Name)
	assert.Equal(t, "https://api.example.com/v1/users", item.Dependency.Data)
	assert.Equal(t, "api.example.com", item.Dependency.Target, "default https port is stripped")
	assert.Equal(t, int64(201), item.Dependency.ResponseCode)
	assert.True(t, item.Dependency.Success)
	assert.Empty(t, item.Dependency.Properties)
}

func TestHTTPDependencyWithRouteKeepsSpanName(t *testing.T) {
	item := mapSpan(t, endedSpan("GET /users/{id}", span.KindClient, map[string]any{
		"http.request.method": "GET",
		"url.full":            "http://svc:8080/users/42",
		"http.route":          "/users/{id}",
	}))

	assert.Equal(t, "GET /users/{id}", item.Dependency.Name)
	assert.Equal(t, "svc:8080", item.Dependency.Target, "non default ports are preserved")
	assert.Equal(t, "http://svc:8080/users/42", item.Dependency.Data)
}

func TestHTTPDependencyUnparsableURL(t *testing.T) {
	item := mapSpan(t, endedSpan("call", span.KindClient, map[string]any{
		"http.method": "get",
		"http.url":    "http://[::1]:namedport/x",
	}))

	assert.Equal(t, "GET http://[::1]:namedport/x", item.Dependency.Name, "raw URL is used when parsing fails")
	assert.Equal(t, "http://[::1]:namedport/x", item.Dependency.Target)
}

func TestDBDependencyWithoutStatement(t *testing.T) {
	var item *telemetry.Item
	assert.NotPanics(t, func() {
		item = mapSpan(t, endedSpan("query", span.KindClient, map[string]any{
			"db.system": "postgresql",
			"db.name":   "testdb",
		}))
	})

	assert.Equal(t, "postgresql", item.Dependency.Type)
	assert.Empty(t, item.Dependency.Data)
	assert.Equal(t, "testdb", item.Dependency.Target)
}

func TestDBDependency(t *testing.T) {
	tests := []struct {
		name           string
		attrs          map[string]any
		expectedType   string
		expectedData   string
		expectedTarget string
	}{
		{
			name: "sql family with statement",
			attrs: map[string]any{
				"db.system":      "mssql",
				"db.statement":   "SELECT * FROM users",
				"db.operation":   "SELECT",
				"server.address": "sql.local",
				"server.port":    1433,
				"db.name":        "app",
			},
			expectedType:   TypeSQL,
			expectedData:   "SELECT * FROM users",
			expectedTarget: "sql.local:1433 | app",
		},
		{
			name: "operation when statement missing",
			attrs: map[string]any{
				"db.system":     "mongodb",
				"db.operation":  "find",
				"net.peer.name": "mongo",
				"net.peer.port": 27017,
			},
			expectedType:   "mongodb",
			expectedData:   "find",
			expectedTarget: "mongo:27017",
		},
		{
			name:           "system only",
			attrs:          map[string]any{"db.system": "redis"},
			expectedType:   "redis",
			expectedTarget: "redis",
		},
		{
			name:           "peer service wins",
			attrs:          map[string]any{"db.system": "mysql", "peer.service": "users-db", "server.address": "10.0.0.1"},
			expectedType:   "mysql",
			expectedTarget: "users-db",
		},
		{
			name:           "sqlite is sql",
			attrs:          map[string]any{"db.system": "sqlite", "db.query.text": "SELECT 1"},
			expectedType:   TypeSQL,
			expectedData:   "SELECT 1",
			expectedTarget: "sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := mapSpan(t, endedSpan("db", span.KindClient, tt.attrs))
			assert.Equal(t, tt.expectedType, item.Dependency.Type)
			assert.Equal(t, tt.expectedData, item.Dependency.Data)
			assert.Equal(t, tt.expectedTarget, item.Dependency.Target)
		})
	}
}

func TestDependencyTypePriority(t *testing.T) {
	tests := []struct {
		name     string
		kind     span.Kind
		attrs    map[string]any
		expected string
	}{
		{"messaging beats everything", span.KindProducer, map[string]any{"messaging.system": "kafka", "rpc.system": "grpc", "db.system": "redis", "http.method": "GET"}, TypeQueueMessage},
		{"messaging destination only", span.KindProducer, map[string]any{"messaging.destination": "orders"}, TypeQueueMessage},
		{"azure event hub", span.KindProducer, map[string]any{"messaging.system": "eventhubs", "az.namespace": "Microsoft.EventHub"}, "Queue Message | Microsoft.EventHub"},
		{"unknown azure namespace", span.KindProducer, map[string]any{"messaging.system": "x", "az.namespace": "Microsoft.Storage"}, TypeQueueMessage},
		{"grpc beats db", span.KindClient, map[string]any{"rpc.system": "grpc", "db.system": "redis"}, TypeGRPC},
		{"wcf", span.KindClient, map[string]any{"rpc.system": "wcf"}, TypeWCF},
		{"other rpc literal", span.KindClient, map[string]any{"rpc.system": "apache_dubbo"}, "apache_dubbo"},
		{"db beats http", span.KindClient, map[string]any{"db.system": "oracle", "http.method": "GET"}, TypeSQL},
		{"http only", span.KindClient, map[string]any{"http.response.status_code": 200}, TypeHTTP},
		{"fallback", span.KindClient, map[string]any{"custom": "x"}, TypeDependency},
		{"internal", span.KindInternal, map[string]any{"http.method": "GET"}, TypeInProc},
		{"internal with namespace", span.KindInternal, map[string]any{"az.namespace": "Microsoft.Storage"}, "InProc | Microsoft.Storage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := mapSpan(t, endedSpan("op", tt.kind, tt.attrs))
			require.NotNil(t, item.Dependency)
			assert.Equal(t, tt.expected, item.Dependency.Type)
		})
	}
}

func TestStatusPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		status   span.StatusCode
		attrs    map[string]any
		expected bool
	}{
		{"ok overrides 500", span.StatusOK, map[string]any{"http.status_code": 500}, true},
		{"error overrides 200", span.StatusError, map[string]any{"http.status_code": 200}, false},
		{"unset 201", span.StatusUnset, map[string]any{"http.status_code": 201}, true},
		{"unset 302", span.StatusUnset, map[string]any{"http.status_code": 302}, true},
		{"unset 503", span.StatusUnset, map[string]any{"http.status_code": 503}, false},
		{"unset 404 string", span.StatusUnset, map[string]any{"http.response.status_code": "404"}, false},
		{"unset no code", span.StatusUnset, map[string]any{"http.method": "GET"}, true},
		{"grpc ok", span.StatusUnset, map[string]any{"rpc.system": "grpc", "rpc.grpc.status_code": 0}, true},
		{"grpc unavailable", span.StatusUnset, map[string]any{"rpc.system": "grpc", "rpc.grpc.status_code": 14}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := mapSpan(t, endedSpan("op", span.KindClient, tt.attrs, tt.status))
			assert.Equal(t, tt.expected, item.Success())
		})
	}
}

func TestGRPCResponseCode(t *testing.T) {
	item := mapSpan(t, endedSpan("rpc", span.KindClient, map[string]any{
		"rpc.system":           "grpc",
		"rpc.grpc.status_code": 5,
		"net.peer.name":        "users",
		"net.peer.port":        50051,
	}))
	assert.Equal(t, int64(5), item.Dependency.ResponseCode)
	assert.Equal(t, "users:50051", item.Dependency.Target)
}

func TestTargetPorts(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string]any
		expected string
	}{
		{"http default port", map[string]any{"http.method": "GET", "url.scheme": "http", "server.address": "a.com", "server.port": 80}, "a.com"},
		{"https default port", map[string]any{"http.method": "GET", "url.scheme": "https", "server.address": "a.com", "server.port": 443}, "a.com"},
		{"port 80 on https kept", map[string]any{"http.method": "GET", "url.scheme": "https", "server.address": "a.com", "server.port": 80}, "a.com:80"},
		{"legacy host with port", map[string]any{"http.method": "GET", "http.host": "a.com:443", "http.url": "https://a.com/x"}, "a.com"},
		{"non default port", map[string]any{"http.method": "GET", "server.address": "a.com", "server.port": 8443}, "a.com:8443"},
		{"url with explicit default port", map[string]any{"http.url": "http://a.com:80/x"}, "a.com"},
		{"peer ip", map[string]any{"http.method": "GET", "net.peer.ip": "10.1.2.3"}, "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := mapSpan(t, endedSpan("op", span.KindClient, tt.attrs))
			assert.Equal(t, tt.expected, item.Dependency.Target)
		})
	}
}

func TestURLSchemeIsConsumed(t *testing.T) {
	attrs := map[string]any{"http.method": "GET", "url.scheme": "https", "server.address": "a.com", "server.port": 443}

	client := mapSpan(t, endedSpan("op", span.KindClient, attrs))
	assert.Equal(t, "a.com", client.Dependency.Target)
	assert.NotContains(t, client.Dependency.Properties, "url.scheme")

	rpc := mapSpan(t, endedSpan("op", span.KindServer, map[string]any{
		"rpc.system": "grpc", "url.scheme": "https", "server.address": "a.com", "server.port": 443,
	}))
	require.NotNil(t, rpc.Request)
	assert.NotContains(t, rpc.Request.Properties, "url.scheme")
}

func TestSemanticExclusion(t *testing.T) {
	item := mapSpan(t, endedSpan("op", span.KindClient, map[string]any{
		"http.method":       "POST",
		"custom.attribute":  "keep",
		"app.microsoft":     "kept",
		"microsoft.foo":     "dropped",
		"net.transport":     "ip_tcp",
		"messagingish":      "kept",
		"ai.operation.name": "overridden",
		"count":             3,
		"ratio":             0.5,
		"flag":              true,
		"list":              []string{"a"},
		"nothing":           nil,
	}))

	props := item.Dependency.Properties
	assert.Equal(t, "keep", props["custom.attribute"])
	assert.Equal(t, "kept", props["app.microsoft"], "keys merely containing an excluded word are kept")
	assert.Equal(t, "kept", props["messagingish"])
	assert.Equal(t, int64(3), props["count"], "native types are preserved")
	assert.Equal(t, 0.5, props["ratio"])
	assert.Equal(t, true, props["flag"])
	assert.Equal(t, []string{"a"}, props["list"])
	assert.NotContains(t, props, "http.method")
	assert.NotContains(t, props, "microsoft.foo")
	assert.NotContains(t, props, "net.transport")
	assert.NotContains(t, props, "ai.operation.name")
	assert.NotContains(t, props, "nothing")
	assert.Equal(t, "overridden", item.Tags[telemetry.TagOperationName])
}

func TestConfigurableExclusions(t *testing.T) {
	engine := NewEngine(Options{ExcludedPrefixes: []string{"internal."}, ExcludedKeys: []string{"secret"}}, nil)
	item, err := engine.Map(endedSpan("op", span.KindClient, map[string]any{
		"internal.debug": 1,
		"secret":         "x",
		"net.transport":  "ip_tcp",
		"other":          "y",
	}))
	require.NoError(t, err)

	props := item.Properties()
	assert.NotContains(t, props, "internal.debug")
	assert.NotContains(t, props, "secret")
	assert.Equal(t, "ip_tcp", props["net.transport"], "defaults are replaced, not merged")
	assert.Equal(t, "y", props["other"])
}

func TestTagDerivation(t *testing.T) {
	parent := span.New("parent", nil)
	childCtx := tracecontext.Create(parent.SpanContext()).WithSpanID(tracecontext.GenerateSpanID())
	child := span.New("child", childCtx, span.WithKind(span.KindServer), span.WithAttributes(map[string]any{
		"enduser.id":                "alice",
		"enduser.pseudo.id":         "anon-1",
		"client.address":            "192.0.2.1",
		"microsoft.client.ip":       "198.51.100.7",
		"user_agent.original":       "Mozilla/5.0",
		"user_agent.synthetic.type": "bot",
	}))
	child.End()

	item := mapSpan(t, child.Snapshot())
	assert.Equal(t, parent.SpanContext().TraceID(), item.Tags[telemetry.TagOperationID])
	assert.Equal(t, parent.SpanContext().SpanID(), item.Tags[telemetry.TagOperationParentID])
	assert.Equal(t, "alice", item.Tags[telemetry.TagUserAuthUserID])
	assert.Equal(t, "anon-1", item.Tags[telemetry.TagUserID])
	assert.Equal(t, "198.51.100.7", item.Tags[telemetry.TagLocationIP], "microsoft client ip has precedence")
	assert.Equal(t, "Mozilla/5.0", item.Tags[telemetry.TagUserAgent])
	assert.Equal(t, "True", item.Tags[telemetry.TagSyntheticSource])

	props := item.Properties()
	for _, k := range []string{"enduser.id", "enduser.pseudo.id", "client.address", "user_agent.original", "user_agent.synthetic.type"} {
		assert.NotContains(t, props, k, "consumed attribute %s must not be a property", k)
	}
}

func TestTagsOmittedWhenAbsent(t *testing.T) {
	item := mapSpan(t, endedSpan("root", span.KindClient, map[string]any{"http.user_agent": "curl"}))
	assert.NotContains(t, item.Tags, telemetry.TagOperationParentID, "root spans have no parent id")
	assert.NotContains(t, item.Tags, telemetry.TagSyntheticSource, "synthetic source is never written as a falsy marker")
	assert.Equal(t, "curl", item.Tags[telemetry.TagUserAgent])
}

func TestHTTPRequest(t *testing.T) {
	item := mapSpan(t, endedSpan("server", span.KindServer, map[string]any{
		"http.request.method":       "GET",
		"url.full":                  "https://shop.example.com/products/7?ref=home",
		"http.route":                "/products/{id}",
		"http.response.status_code": 404,
		"custom":                    "v",
	}))

	require.NotNil(t, item.Request)
	assert.Equal(t, telemetry.RequestBaseType, item.BaseType)
	assert.Equal(t, "GET /products/{id}", item.Request.Name)
	assert.Equal(t, "GET /products/{id}", item.Tags[telemetry.TagOperationName])
	assert.Equal(t, "https://shop.example.com/products/7?ref=home", item.Request.URL)
	assert.Equal(t, int64(404), item.Request.ResponseCode)
	assert.False(t, item.Request.Success)
	assert.Equal(t, "v", item.Request.Properties["custom"])
	assert.NotContains(t, item.Request.Properties, "url.full")
}

func TestHTTPRequestComposesURL(t *testing.T) {
	item := mapSpan(t, endedSpan("server", span.KindServer, map[string]any{
		"http.method": "POST",
		"http.scheme": "http",
		"http.host":   "localhost:8080",
		"http.target": "/submit?x=1",
	}))

	assert.Equal(t, "http://localhost:8080/submit?x=1", item.Request.URL)
	assert.Equal(t, "POST /submit", item.Request.Name)
	assert.True(t, item.Request.Success)
}

func TestConsumerIsRequest(t *testing.T) {
	item := mapSpan(t, endedSpan("process", span.KindConsumer, map[string]any{
		"messaging.system":      "rabbitmq",
		"messaging.destination": "orders",
	}))
	require.NotNil(t, item.Request)
	assert.Equal(t, "process", item.Request.Name)
	assert.Equal(t, "orders", item.Request.Source)
}

func TestMapTimingAndIdentity(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	s := span.New("op", nil, span.WithKind(span.KindClient), span.WithStartTime(start))
	s.End(start.Add(2 * time.Second))

	item := mapSpan(t, s.Snapshot())
	assert.Equal(t, s.SpanContext().SpanID(), item.ID())
	assert.Equal(t, 2*time.Second, item.Dependency.Duration)
	assert.Equal(t, start, item.Time)
}

func TestMapRejectsUnfinishedSpans(t *testing.T) {
	engine := NewEngine(DefaultOptions(), nil)

	_, err := engine.Map(nil)
	assert.ErrorIs(t, err, ErrNilSnapshot)

	running := span.New("running", nil)
	_, err = engine.MapSpan(running)
	assert.ErrorIs(t, err, ErrSpanNotEnded)

	nonRecording := span.New("quiet", nil, span.WithRecording(false))
	nonRecording.End()
	_, err = engine.MapSpan(nonRecording)
	assert.ErrorIs(t, err, ErrSpanNotRecording)
}
