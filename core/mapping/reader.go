package mapping

import (
	"github.com/deepaksharma/spancore/core/attributes"
)

// attrReader reads span attributes and remembers which keys a mapping rule
// used, so that those keys are not copied again as custom properties.
type attrReader struct {
	attrs    *attributes.Container
	consumed map[string]struct{}
}

func newAttrReader(attrs *attributes.Container) *attrReader {
	if attrs == nil {
		attrs = attributes.New()
	}
	return &attrReader{attrs: attrs, consumed: make(map[string]struct{})}
}

// has checks presence without consuming.
func (r *attrReader) has(keys ...string) bool {
	return r.attrs.HasAny(keys...)
}

// value returns the first present, non-null key and consumes it.
func (r *attrReader) value(keys ...string) (attributes.Value, bool) {
	for _, k := range keys {
		v, ok := r.attrs.Get(k)
		if !ok || v.IsNull() {
			continue
		}
		r.consumed[k] = struct{}{}
		return v, true
	}
	return attributes.Value{}, false
}

// str returns the first present key rendered as a non-empty string.
func (r *attrReader) str(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := r.value(k)
		if !ok {
			continue
		}
		if s := v.AsString(); s != "" {
			return s, true
		}
	}
	return "", false
}

// int returns the first present key that converts to an integer.
func (r *attrReader) int(keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := r.value(k)
		if !ok {
			continue
		}
		if i, ok := v.Int(); ok {
			return i, true
		}
	}
	return 0, false
}

// strFamily behaves like str but consumes every present key of the family,
// so that losing alternatives do not resurface as properties.
func (r *attrReader) strFamily(keys ...string) (string, bool) {
	out, ok := r.str(keys...)
	for _, k := range keys {
		if r.attrs.Has(k) {
			r.consume(k)
		}
	}
	return out, ok
}

// consume marks key as used without reading it.
func (r *attrReader) consume(key string) {
	r.consumed[key] = struct{}{}
}

func (r *attrReader) isConsumed(key string) bool {
	_, ok := r.consumed[key]
	return ok
}
