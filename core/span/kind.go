package span

import "go.opentelemetry.io/collector/pdata/ptrace"

// Kind describes the role of a span in a trace.
type Kind int8

const (
	KindInternal Kind = iota
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "SERVER"
	case KindClient:
		return "CLIENT"
	case KindProducer:
		return "PRODUCER"
	case KindConsumer:
		return "CONSUMER"
	}
	return "INTERNAL"
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k >= KindInternal && k <= KindConsumer
}

// PData converts the kind to its collector representation.
func (k Kind) PData() ptrace.SpanKind {
	switch k {
	case KindServer:
		return ptrace.SpanKindServer
	case KindClient:
		return ptrace.SpanKindClient
	case KindProducer:
		return ptrace.SpanKindProducer
	case KindConsumer:
		return ptrace.SpanKindConsumer
	}
	return ptrace.SpanKindInternal
}

// KindFromPData converts a collector span kind. Unspecified maps to internal.
func KindFromPData(k ptrace.SpanKind) Kind {
	switch k {
	case ptrace.SpanKindServer:
		return KindServer
	case ptrace.SpanKindClient:
		return KindClient
	case ptrace.SpanKindProducer:
		return KindProducer
	case ptrace.SpanKindConsumer:
		return KindConsumer
	}
	return KindInternal
}

// StatusCode is the outcome of a span.
type StatusCode int8

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	}
	return "UNSET"
}

// IsValid reports whether c is a known status code.
func (c StatusCode) IsValid() bool {
	return c >= StatusUnset && c <= StatusError
}

// Status is the span status with an optional description.
type Status struct {
	Code    StatusCode
	Message string
}

// PData converts the status code to its collector representation.
func (c StatusCode) PData() ptrace.StatusCode {
	switch c {
	case StatusOK:
		return ptrace.StatusCodeOk
	case StatusError:
		return ptrace.StatusCodeError
	}
	return ptrace.StatusCodeUnset
}

// StatusCodeFromPData converts a collector status code.
func StatusCodeFromPData(c ptrace.StatusCode) StatusCode {
	switch c {
	case ptrace.StatusCodeOk:
		return StatusOK
	case ptrace.StatusCodeError:
		return StatusError
	}
	return StatusUnset
}
