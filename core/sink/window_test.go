package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestWindowRollover(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rollovers := 0

	w := NewWindowManager(time.Minute, func() { rollovers++ }, zap.NewNop())
	w.now = clock.Now
	w.lock.Lock()
	w.initializeWindowLocked()
	w.lock.Unlock()

	id, start, end := w.CurrentWindow()
	assert.Equal(t, int64(2), id)
	assert.Equal(t, time.Minute, end.Sub(start))

	clock.Advance(30 * time.Second)
	assert.False(t, w.CheckRollover())
	assert.Equal(t, 0, rollovers)

	clock.Advance(30 * time.Second)
	assert.True(t, w.CheckRollover(), "the window end is exclusive")
	assert.Equal(t, 1, rollovers)

	id, start, _ = w.CurrentWindow()
	assert.Equal(t, int64(3), id)
	assert.Equal(t, clock.now, start)
}

func TestDedupeSetForgetsAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	d := newDedupeSet(time.Minute, zap.NewNop())
	d.window.now = clock.Now
	d.window.lock.Lock()
	d.window.initializeWindowLocked()
	d.window.lock.Unlock()

	assert.False(t, d.seenOrAdd(1))
	assert.True(t, d.seenOrAdd(1))
	assert.False(t, d.seenOrAdd(2))
	assert.Equal(t, 2, d.len())

	clock.Advance(time.Minute)
	assert.False(t, d.seenOrAdd(1), "keys are forgotten on rollover")
	assert.Equal(t, 1, d.len())
}

func TestItemKey(t *testing.T) {
	a := newItem("0000000000000001")
	b := newItem("0000000000000001")
	c := newItem("0000000000000002")

	assert.Equal(t, itemKey(a), itemKey(b))
	assert.NotEqual(t, itemKey(a), itemKey(c))
}
