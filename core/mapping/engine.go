package mapping

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/attributes"
	"github.com/deepaksharma/spancore/core/span"
	"github.com/deepaksharma/spancore/core/telemetry"
)

var (
	// ErrNilSnapshot is returned when Map is called without a span
	ErrNilSnapshot = errors.New("span snapshot is nil")
	// ErrSpanNotEnded is returned for spans that have not ended yet
	ErrSpanNotEnded = errors.New("span has not ended")
	// ErrSpanNotRecording is returned for non-recording spans
	ErrSpanNotRecording = errors.New("span is not recording")
)

// Dependency type values.
const (
	TypeInProc       = "InProc"
	TypeQueueMessage = "Queue Message"
	TypeGRPC         = "GRPC"
	TypeWCF          = "WCF Service"
	TypeSQL          = "SQL"
	TypeHTTP         = "Http"
	TypeDependency   = "Dependency"
)

// syntheticSourceValue is the only value ever written to the synthetic source tag.
const syntheticSourceValue = "True"

// sqlSystems are db.system values reported with the generic SQL type.
var sqlSystems = map[string]struct{}{
	"db2":                  {},
	"derby":                {},
	"mariadb":              {},
	"mssql":                {},
	"microsoft.sql_server": {},
	"oracle":               {},
	"sqlite":               {},
	"other_sql":            {},
	"hsqldb":               {},
	"h2":                   {},
}

// azureMessagingNamespaces are Azure SDK namespaces whose spans are queue messages.
var azureMessagingNamespaces = map[string]struct{}{
	"Microsoft.EventHub":   {},
	"Microsoft.ServiceBus": {},
}

// family is the semantic convention family detected on a span.
type family int8

const (
	familyNone family = iota
	familyMessaging
	familyRPC
	familyDB
	familyHTTP
)

// Engine converts ended spans into telemetry items.
type Engine struct {
	excludedPrefixes []string
	excludedKeys     map[string]struct{}
	tagOverrides     map[string]struct{}
	logger           *zap.Logger
}

// NewEngine creates a mapping engine. A nil logger disables logging.
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		excludedPrefixes: append([]string(nil), opts.ExcludedPrefixes...),
		excludedKeys:     make(map[string]struct{}, len(opts.ExcludedKeys)),
		tagOverrides:     make(map[string]struct{}),
		logger:           logger,
	}
	for _, k := range opts.ExcludedKeys {
		e.excludedKeys[k] = struct{}{}
	}
	for _, k := range telemetry.InternalTagKeys {
		if k != telemetry.TagOperationID && k != telemetry.TagOperationParentID {
			e.tagOverrides[k] = struct{}{}
		}
	}
	return e
}

// Map converts an ended, recording span into a Request item for server and
// consumer spans or a RemoteDependency item for everything else.
func (e *Engine) Map(s *span.Snapshot) (*telemetry.Item, error) {
	if s == nil {
		return nil, ErrNilSnapshot
	}
	if !s.Recording {
		return nil, ErrSpanNotRecording
	}
	if !s.Ended {
		return nil, ErrSpanNotEnded
	}

	r := newAttrReader(s.Attributes)

	var item *telemetry.Item
	switch s.Kind {
	case span.KindServer, span.KindConsumer:
		item = e.mapRequest(s, r)
	default:
		item = e.mapDependency(s, r)
	}

	e.applyTags(item, s, r)
	e.applyProperties(item.Properties(), r)

	e.logger.Debug("Mapped span",
		zap.String("span_id", s.SpanID()),
		zap.String("base_type", item.BaseType),
		zap.String("name", item.Name()))

	return item, nil
}

// MapSpan maps a live span through its snapshot.
func (e *Engine) MapSpan(s *span.Span) (*telemetry.Item, error) {
	if s == nil {
		return nil, ErrNilSnapshot
	}
	return e.Map(s.Snapshot())
}

func detectFamily(r *attrReader) family {
	switch {
	case r.has(attributes.MessagingSystem) || r.has(attributes.MessagingDestKeys...):
		return familyMessaging
	case r.has(attributes.RPCSystem):
		return familyRPC
	case r.has(attributes.DBSystemKeys...):
		return familyDB
	case r.has(attributes.HTTPKeys...):
		return familyHTTP
	}
	return familyNone
}

func (e *Engine) mapDependency(s *span.Snapshot, r *attrReader) *telemetry.Item {
	item := telemetry.NewDependencyItem(s.StartTime)
	d := item.Dependency
	d.ID = s.SpanID()
	d.Name = s.Name
	d.Duration = s.Duration()
	d.Type = TypeDependency

	fam := detectFamily(r)
	scheme := urlScheme(r)

	var (
		code    int64
		hasCode bool
	)

	switch fam {
	case familyMessaging:
		d.Type = TypeQueueMessage
		if ns, ok := r.str(attributes.AzureNamespaceKeys...); ok {
			if _, known := azureMessagingNamespaces[ns]; known {
				d.Type = TypeQueueMessage + " | " + ns
			}
		}
		d.Target = targetFor(r, scheme)
		if d.Target == "" {
			d.Target, _ = r.str(attributes.MessagingDestKeys...)
		}
		if d.Target == "" {
			d.Target, _ = r.str(attributes.MessagingSystem)
		}
		r.consume(attributes.MessagingSystem)
	case familyRPC:
		d.Type = rpcType(r)
		d.Target = targetFor(r, scheme)
		code, hasCode = r.int(attributes.RPCGRPCStatusCode)
	case familyDB:
		system, _ := r.str(attributes.DBSystemKeys...)
		d.Type = dbType(system)
		d.Data, _ = r.str(attributes.DBStatementKeys...)
		if d.Data == "" {
			d.Data, _ = r.str(attributes.DBOperationKeys...)
		}
		d.Target = targetFor(r, scheme)
		if dbName, ok := r.str(attributes.DBNameKeys...); ok {
			if d.Target == "" {
				d.Target = dbName
			} else {
				d.Target += " | " + dbName
			}
		}
		if d.Target == "" {
			d.Target = system
		}
	case familyHTTP:
		d.Type = TypeHTTP
		rawURL, _ := r.str(attributes.URLFullKeys...)
		d.Data = rawURL
		if !r.has(attributes.HTTPRoute) {
			if name, ok := httpOperationName(r, rawURL, false); ok {
				d.Name = name
			}
		}
		d.Target = targetFor(r, scheme)
		code, hasCode = r.int(attributes.HTTPStatusKeys...)
	}

	if s.Kind == span.KindInternal {
		d.Type = TypeInProc
		if ns, ok := r.str(attributes.AzureNamespaceKeys...); ok {
			d.Type = TypeInProc + " | " + ns
		}
	}

	d.ResponseCode = code
	d.Success = isSuccess(s.Status.Code, fam, code, hasCode)
	return item
}

func (e *Engine) mapRequest(s *span.Snapshot, r *attrReader) *telemetry.Item {
	item := telemetry.NewRequestItem(s.StartTime)
	req := item.Request
	req.ID = s.SpanID()
	req.Name = s.Name
	req.Duration = s.Duration()

	fam := detectFamily(r)

	var (
		code    int64
		hasCode bool
	)

	switch fam {
	case familyHTTP:
		req.URL = requestURL(r)
		if name, ok := httpOperationName(r, req.URL, true); ok {
			req.Name = name
		}
		code, hasCode = r.int(attributes.HTTPStatusKeys...)
		req.Source, _ = r.str(attributes.ClientIPKeys...)
	case familyRPC:
		code, hasCode = r.int(attributes.RPCGRPCStatusCode)
		req.Source = targetFor(r, urlScheme(r))
	case familyMessaging:
		req.Source, _ = r.str(attributes.MessagingDestKeys...)
		if req.Source == "" {
			req.Source = targetFor(r, "")
		}
	}

	req.ResponseCode = code
	req.Success = isSuccess(s.Status.Code, fam, code, hasCode)
	item.Tags[telemetry.TagOperationName] = req.Name
	return item
}

// isSuccess applies the status precedence: an explicit OK or ERROR status
// wins, otherwise the response code decides, and a span without either is
// successful.
func isSuccess(code span.StatusCode, fam family, responseCode int64, hasCode bool) bool {
	switch code {
	case span.StatusOK:
		return true
	case span.StatusError:
		return false
	}
	if !hasCode {
		return true
	}
	if fam == familyRPC {
		return responseCode == 0
	}
	return responseCode >= 200 && responseCode < 400
}

func rpcType(r *attrReader) string {
	system, _ := r.str(attributes.RPCSystem)
	switch strings.ToLower(system) {
	case "grpc":
		return TypeGRPC
	case "wcf":
		return TypeWCF
	}
	return system
}

func dbType(system string) string {
	if _, ok := sqlSystems[strings.ToLower(system)]; ok {
		return TypeSQL
	}
	if system == "" {
		return TypeDependency
	}
	return system
}

func (e *Engine) applyTags(item *telemetry.Item, s *span.Snapshot, r *attrReader) {
	tags := item.Tags
	tags[telemetry.TagOperationID] = s.TraceID()
	if parentID := s.ParentSpanID(); parentID != "" {
		tags[telemetry.TagOperationParentID] = parentID
	}

	if v, ok := r.str(attributes.EnduserID); ok {
		tags[telemetry.TagUserAuthUserID] = v
	}
	if v, ok := r.str(attributes.EnduserPseudoID); ok {
		tags[telemetry.TagUserID] = v
	}
	if v, ok := r.strFamily(attributes.ClientIPKeys...); ok {
		tags[telemetry.TagLocationIP] = v
	}
	if v, ok := r.strFamily(attributes.UserAgentKeys...); ok {
		tags[telemetry.TagUserAgent] = v
	}
	if _, ok := r.value(attributes.UserAgentSyntheticType); ok {
		tags[telemetry.TagSyntheticSource] = syntheticSourceValue
	}

	// Attributes named after a context tag set that tag directly.
	r.attrs.Range(func(k string, v attributes.Value) bool {
		if _, ok := e.tagOverrides[k]; ok {
			r.consume(k)
			if str := v.AsString(); str != "" {
				tags[k] = str
			}
		}
		return true
	})
}

func (e *Engine) applyProperties(props map[string]any, r *attrReader) {
	r.attrs.Range(func(k string, v attributes.Value) bool {
		if v.IsNull() || r.isConsumed(k) || e.isExcluded(k) {
			return true
		}
		props[k] = v.Interface()
		return true
	})
}

func (e *Engine) isExcluded(key string) bool {
	if _, ok := e.excludedKeys[key]; ok {
		return true
	}
	for _, prefix := range e.excludedPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
