package sink

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/deepaksharma/spancore/core/telemetry"
)

// itemKey identifies a telemetry item by trace id, span id and base type.
func itemKey(item *telemetry.Item) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(item.Tags[telemetry.TagOperationID])
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(item.ID())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(item.BaseType)
	return d.Sum64()
}

// dedupeSet remembers item keys for the length of one window.
type dedupeSet struct {
	lock   sync.Mutex
	seen   map[uint64]struct{}
	window *WindowManager
}

func newDedupeSet(window time.Duration, logger *zap.Logger) *dedupeSet {
	d := &dedupeSet{seen: make(map[uint64]struct{})}
	d.window = NewWindowManager(window, d.reset, logger)
	return d
}

func (d *dedupeSet) reset() {
	d.lock.Lock()
	d.seen = make(map[uint64]struct{})
	d.lock.Unlock()
}

// seenOrAdd reports whether key was already seen in the current window and
// records it otherwise.
func (d *dedupeSet) seenOrAdd(key uint64) bool {
	d.window.CheckRollover()

	d.lock.Lock()
	defer d.lock.Unlock()
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *dedupeSet) len() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.seen)
}
