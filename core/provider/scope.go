package provider

import (
	"go.uber.org/atomic"

	"github.com/deepaksharma/spancore/core/span"
)

// Scope records one activation of a span. Restore puts the previously
// active span back; only the first call has an effect.
type Scope struct {
	host     SpanHost
	span     *span.Span
	restore  func()
	restored *atomic.Bool
}

// NewScope builds a scope for hosts implementing SpanHost. restore is run at
// most once.
func NewScope(host SpanHost, s *span.Span, restore func()) *Scope {
	return &Scope{
		host:     host,
		span:     s,
		restore:  restore,
		restored: atomic.NewBool(false),
	}
}

// Span returns the span activated by this scope. It may be nil.
func (s *Scope) Span() *span.Span {
	if s == nil {
		return nil
	}
	return s.span
}

// Host returns the host the span was activated on.
func (s *Scope) Host() SpanHost {
	if s == nil {
		return nil
	}
	return s.host
}

// Restore reactivates the span that was active before this scope.
func (s *Scope) Restore() {
	if s == nil || !s.restored.CompareAndSwap(false, true) {
		return
	}
	if s.restore != nil {
		s.restore()
	}
}

// Restored reports whether Restore has been called.
func (s *Scope) Restored() bool {
	return s != nil && s.restored.Load()
}
