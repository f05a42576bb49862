package span

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/attributes"
)

// ExceptionEventName is the event name used by RecordException.
const ExceptionEventName = "exception"

type stackTracer interface {
	StackTrace() string
}

// RecordException adds an exception event describing exc. Any value is
// accepted: errors, Stringers, strings and arbitrary data. Values that
// cannot be rendered are described by their type alone. It never panics.
func (s *Span) RecordException(exc any, t ...time.Time) {
	if exc == nil || !s.IsRecording() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("Failed to record exception", zap.Any("panic", r))
		}
	}()

	excType, message, stack := describeException(exc)
	attrs := map[string]any{
		attributes.ExceptionMessage:    message,
		attributes.ExceptionStacktrace: stack,
	}
	if excType != "" {
		attrs[attributes.ExceptionType] = excType
	}
	s.AddEvent(ExceptionEventName, attrs, t...)
}

func describeException(exc any) (excType, message, stack string) {
	switch e := exc.(type) {
	case error:
		excType = fmt.Sprintf("%T", e)
		message = safeString(e.Error, excType)
		if st, ok := e.(stackTracer); ok {
			stack = safeString(st.StackTrace, "")
		}
	case fmt.Stringer:
		excType = fmt.Sprintf("%T", e)
		message = safeString(e.String, excType)
	case string:
		message = e
	default:
		excType = fmt.Sprintf("%T", e)
		// encoding/json rejects cyclic values instead of recursing forever.
		if b, err := json.Marshal(e); err == nil {
			message = string(b)
		} else {
			message = excType
		}
	}
	if stack == "" {
		stack = string(debug.Stack())
	}
	return excType, message, stack
}

func safeString(fn func() string, fallback string) (out string) {
	defer func() {
		if recover() != nil {
			out = fallback
		}
	}()
	return fn()
}
