package provider

import (
	"fmt"

	"github.com/deepaksharma/spancore/core/span"
)

// Result is the settled outcome of an asynchronous callback.
type Result[T any] struct {
	Value T
	Err   error
}

// WithSpan activates s on h for the duration of fn. The previous active span
// is restored when fn returns or panics; errors and panics propagate
// unchanged. fn runs even when s is nil, with no span active.
func WithSpan[T any](h SpanHost, s *span.Span, fn func() (T, error)) (T, error) {
	scope := h.SetActiveSpan(s)
	defer scope.Restore()
	return fn()
}

// UseSpan is WithSpan but hands the scope to fn.
func UseSpan[T any](h SpanHost, s *span.Span, fn func(scope *Scope) (T, error)) (T, error) {
	scope := h.SetActiveSpan(s)
	defer scope.Restore()
	return fn(scope)
}

// StartActiveSpan starts a span named name, activates it around fn and ends
// it when fn returns. A returned error or a panic marks the span as failed
// before it ends; both still reach the caller unchanged.
func StartActiveSpan[T any](h SpanHost, name string, fn func(scope *Scope) (T, error), opts ...StartOption) (result T, err error) {
	s := h.StartSpan(name, opts...)
	scope := h.SetActiveSpan(s)
	defer scope.Restore()

	defer func() {
		if r := recover(); r != nil {
			failSpan(s, fmt.Sprint(r))
			endSpan(s)
			panic(r)
		}
		if err != nil {
			failSpan(s, err.Error())
		}
		endSpan(s)
	}()

	return fn(scope)
}

// WithSpanAsync activates s on h while the channel returned by fn is
// pending. The previous span is restored once the channel delivers a value
// or is closed, before the result is forwarded on the returned channel. A
// nil channel is treated as an immediate completion and yields nil.
func WithSpanAsync[T any](h SpanHost, s *span.Span, fn func() <-chan Result[T]) <-chan Result[T] {
	scope := h.SetActiveSpan(s)
	pending := callRestoringOnPanic(scope, func() <-chan Result[T] { return fn() })
	return settle(pending, func(Result[T]) { scope.Restore() })
}

// UseSpanAsync is WithSpanAsync but hands the scope to fn.
func UseSpanAsync[T any](h SpanHost, s *span.Span, fn func(scope *Scope) <-chan Result[T]) <-chan Result[T] {
	scope := h.SetActiveSpan(s)
	pending := callRestoringOnPanic(scope, func() <-chan Result[T] { return fn(scope) })
	return settle(pending, func(Result[T]) { scope.Restore() })
}

// StartActiveSpanAsync starts and activates a span, then ends it once the
// channel returned by fn settles. A settled error marks the span as failed.
func StartActiveSpanAsync[T any](h SpanHost, name string, fn func(scope *Scope) <-chan Result[T], opts ...StartOption) <-chan Result[T] {
	s := h.StartSpan(name, opts...)
	scope := h.SetActiveSpan(s)

	var pending <-chan Result[T]
	func() {
		defer func() {
			if r := recover(); r != nil {
				failSpan(s, fmt.Sprint(r))
				endSpan(s)
				scope.Restore()
				panic(r)
			}
		}()
		pending = fn(scope)
	}()

	return settle(pending, func(res Result[T]) {
		if res.Err != nil {
			failSpan(s, res.Err.Error())
		}
		endSpan(s)
		scope.Restore()
	})
}

func callRestoringOnPanic[T any](scope *Scope, fn func() <-chan Result[T]) <-chan Result[T] {
	defer func() {
		if r := recover(); r != nil {
			scope.Restore()
			panic(r)
		}
	}()
	return fn()
}

// settle runs done once the input channel settles, then forwards the result.
func settle[T any](in <-chan Result[T], done func(Result[T])) <-chan Result[T] {
	if in == nil {
		done(Result[T]{})
		return nil
	}

	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		res := <-in
		done(res)
		out <- res
	}()
	return out
}

func failSpan(s *span.Span, message string) {
	if s != nil {
		s.SetStatus(span.StatusError, message)
	}
}

func endSpan(s *span.Span) {
	if s != nil {
		s.End()
	}
}
