package attributes

import (
	"sync"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Container is an ordered attribute store that enforces the attribute value
// type system. Invalid keys or values are dropped with a warning and never
// reported to the caller as an error.
type Container struct {
	lock    sync.RWMutex
	attrs   pcommon.Map
	frozen  bool
	dropped *atomic.Int64

	// Shared drop counter, usually owned by the metrics manager
	dropCounter *atomic.Int64

	logger *zap.Logger
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used to report dropped attributes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDropCounter adds every dropped attribute to counter.
func WithDropCounter(counter *atomic.Int64) Option {
	return func(c *Container) {
		c.dropCounter = counter
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		attrs:   pcommon.NewMap(),
		dropped: atomic.NewInt64(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromPData builds a container from a pdata attribute map.
func FromPData(m pcommon.Map, opts ...Option) *Container {
	c := New(opts...)
	m.Range(func(k string, v pcommon.Value) bool {
		c.SetValue(k, fromPValue(v))
		return true
	})
	return c
}

// Set validates and stores value under key. It returns false when the
// attribute was dropped.
func (c *Container) Set(key string, value any) bool {
	if key == "" {
		c.drop(key, ErrInvalidKey)
		return false
	}
	v, err := ValueOf(value)
	if err != nil {
		c.drop(key, err)
		return false
	}
	return c.SetValue(key, v)
}

// SetValue stores an already validated value.
func (c *Container) SetValue(key string, v Value) bool {
	if key == "" {
		c.drop(key, ErrInvalidKey)
		return false
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.frozen {
		c.logger.Debug("Ignoring attribute on frozen container", zap.String("key", key))
		return false
	}
	putValue(c.attrs, key, v)
	return true
}

// SetAll stores every entry of attrs and returns how many were accepted. A
// nil map is a no-op.
func (c *Container) SetAll(attrs map[string]any) int {
	accepted := 0
	for k, v := range attrs {
		if c.Set(k, v) {
			accepted++
		}
	}
	return accepted
}

func (c *Container) drop(key string, err error) {
	c.dropped.Inc()
	if c.dropCounter != nil {
		c.dropCounter.Inc()
	}
	c.logger.Warn("Dropping invalid attribute", zap.String("key", key), zap.Error(err))
}

// Get returns the value stored under key.
func (c *Container) Get(key string) (Value, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	pv, ok := c.attrs.Get(key)
	if !ok {
		return Value{}, false
	}
	return fromPValue(pv), true
}

// Lookup returns the first of keys present in the container. It is used to
// read a semantic convention that has both a current and a legacy key.
func (c *Container) Lookup(keys ...string) (string, Value, bool) {
	for _, k := range keys {
		if v, ok := c.Get(k); ok {
			return k, v, true
		}
	}
	return "", Value{}, false
}

// Has reports whether key is present.
func (c *Container) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// HasAny reports whether any of keys is present.
func (c *Container) HasAny(keys ...string) bool {
	_, _, ok := c.Lookup(keys...)
	return ok
}

// Range calls fn for each attribute in insertion order until fn returns false.
func (c *Container) Range(fn func(key string, v Value) bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	c.attrs.Range(func(k string, pv pcommon.Value) bool {
		return fn(k, fromPValue(pv))
	})
}

// Len returns the number of attributes.
func (c *Container) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.attrs.Len()
}

// Keys returns the attribute keys in insertion order.
func (c *Container) Keys() []string {
	keys := make([]string, 0, c.Len())
	c.Range(func(k string, _ Value) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// AsMap returns a copy of the attributes as plain Go values.
func (c *Container) AsMap() map[string]any {
	out := make(map[string]any, c.Len())
	c.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

// Dropped returns how many attributes this container rejected.
func (c *Container) Dropped() int64 {
	return c.dropped.Load()
}

// Freeze makes the container read-only. Later writes are ignored.
func (c *Container) Freeze() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.frozen = true
}

// Frozen reports whether the container is read-only.
func (c *Container) Frozen() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.frozen
}

// Snapshot returns a frozen deep copy of the container.
func (c *Container) Snapshot() *Container {
	c.lock.RLock()
	defer c.lock.RUnlock()

	snap := &Container{
		attrs:   pcommon.NewMap(),
		frozen:  true,
		dropped: atomic.NewInt64(c.dropped.Load()),
		logger:  c.logger,
	}
	c.attrs.CopyTo(snap.attrs)
	return snap
}

// CopyTo copies all attributes into dest, overwriting dest.
func (c *Container) CopyTo(dest pcommon.Map) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	c.attrs.CopyTo(dest)
}
