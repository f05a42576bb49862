package telemetry

import (
	"time"
)

// Base types of the two telemetry shapes a span can map to.
const (
	RequestBaseType    = "RequestData"
	DependencyBaseType = "RemoteDependencyData"
)

// Context tag keys written on every item.
const (
	TagOperationID       = "ai.operation.id"
	TagOperationParentID = "ai.operation.parentId"
	TagOperationName     = "ai.operation.name"
	TagSyntheticSource   = "ai.operation.syntheticSource"
	TagUserID            = "ai.user.id"
	TagUserAuthUserID    = "ai.user.authUserId"
	TagUserAgent         = "ai.user.userAgent"
	TagLocationIP        = "ai.location.ip"
)

// Resource level tags, set from the emitting service rather than the span.
const (
	TagCloudRole         = "ai.cloud.role"
	TagCloudRoleInstance = "ai.cloud.roleInstance"
)

// InternalTagKeys lists the tag names that an attribute may not shadow as a
// custom property.
var InternalTagKeys = []string{
	TagOperationID,
	TagOperationParentID,
	TagOperationName,
	TagSyntheticSource,
	TagUserID,
	TagUserAuthUserID,
	TagUserAgent,
	TagLocationIP,
}

// Item is one backend telemetry record. Exactly one of Request and
// Dependency is set, matching BaseType.
type Item struct {
	BaseType   string
	Time       time.Time
	Tags       map[string]string
	Request    *Request
	Dependency *RemoteDependency
}

// Request describes an incoming operation handled by the application.
type Request struct {
	ID           string
	Name         string
	URL          string
	Source       string
	ResponseCode int64
	Success      bool
	Duration     time.Duration
	Properties   map[string]any
	Measurements map[string]float64
}

// RemoteDependency describes an outgoing call or an in-process operation.
type RemoteDependency struct {
	ID           string
	Name         string
	Type         string
	Target       string
	Data         string
	ResponseCode int64
	Success      bool
	Duration     time.Duration
	Properties   map[string]any
	Measurements map[string]float64
}

// NewRequestItem creates an empty request item.
func NewRequestItem(t time.Time) *Item {
	return &Item{
		BaseType: RequestBaseType,
		Time:     t,
		Tags:     make(map[string]string),
		Request: &Request{
			Properties:   make(map[string]any),
			Measurements: make(map[string]float64),
		},
	}
}

// NewDependencyItem creates an empty dependency item.
func NewDependencyItem(t time.Time) *Item {
	return &Item{
		BaseType: DependencyBaseType,
		Time:     t,
		Tags:     make(map[string]string),
		Dependency: &RemoteDependency{
			Properties:   make(map[string]any),
			Measurements: make(map[string]float64),
		},
	}
}

// ID returns the id of the underlying record, which is the span id.
func (i *Item) ID() string {
	switch {
	case i.Request != nil:
		return i.Request.ID
	case i.Dependency != nil:
		return i.Dependency.ID
	}
	return ""
}

// Name returns the name of the underlying record.
func (i *Item) Name() string {
	switch {
	case i.Request != nil:
		return i.Request.Name
	case i.Dependency != nil:
		return i.Dependency.Name
	}
	return ""
}

// Properties returns the custom properties of the underlying record.
func (i *Item) Properties() map[string]any {
	switch {
	case i.Request != nil:
		return i.Request.Properties
	case i.Dependency != nil:
		return i.Dependency.Properties
	}
	return nil
}

// Success returns the success flag of the underlying record.
func (i *Item) Success() bool {
	switch {
	case i.Request != nil:
		return i.Request.Success
	case i.Dependency != nil:
		return i.Dependency.Success
	}
	return false
}

// ResponseCode returns the response code of the underlying record.
func (i *Item) ResponseCode() int64 {
	switch {
	case i.Request != nil:
		return i.Request.ResponseCode
	case i.Dependency != nil:
		return i.Dependency.ResponseCode
	}
	return 0
}
