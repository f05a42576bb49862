package sink

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// WindowManager tracks fixed time windows and calls a callback when the
// current window is over.
type WindowManager struct {
	duration time.Duration

	currentWindow   int64
	windowStartTime time.Time
	windowEndTime   time.Time

	lock sync.RWMutex

	onRollover func()
	now        func() time.Time
	logger     *zap.Logger
}

// NewWindowManager creates a window manager and opens the first window.
func NewWindowManager(duration time.Duration, onRollover func(), logger *zap.Logger) *WindowManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &WindowManager{
		duration:   duration,
		onRollover: onRollover,
		now:        time.Now,
		logger:     logger,
	}
	w.lock.Lock()
	w.initializeWindowLocked()
	w.lock.Unlock()
	return w
}

// CurrentWindow returns the id and bounds of the open window.
func (w *WindowManager) CurrentWindow() (id int64, start, end time.Time) {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.currentWindow, w.windowStartTime, w.windowEndTime
}

// CheckRollover opens a new window when the current one has expired.
// Returns true if a rollover occurred.
func (w *WindowManager) CheckRollover() bool {
	now := w.now()

	w.lock.RLock()
	expired := !now.Before(w.windowEndTime)
	w.lock.RUnlock()
	if !expired {
		return false
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	// Another caller may have rolled over in the meantime
	if now.Before(w.windowEndTime) {
		return false
	}

	if w.onRollover != nil {
		w.onRollover()
	}
	w.initializeWindowLocked()

	w.logger.Debug("Started new dedupe window",
		zap.Int64("window", w.currentWindow),
		zap.Time("end", w.windowEndTime))
	return true
}

// initializeWindowLocked must be called with the lock held.
func (w *WindowManager) initializeWindowLocked() {
	now := w.now()
	w.windowStartTime = now
	w.windowEndTime = now.Add(w.duration)
	w.currentWindow++
}
