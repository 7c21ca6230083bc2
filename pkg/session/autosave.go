package session

import (
	"sync"
	"time"
)

// DefaultSaveDelay is the quiet period after the last local edit before
// the snapshot is persisted.
const DefaultSaveDelay = 800 * time.Millisecond

// autosave debounces local edits into at most one pending persistence
// call. Arm cancels and replaces any earlier timer, so a burst of edits
// inside the window collapses into a single write carrying whatever the
// snapshot holds at expiry.
type autosave struct {
	delay time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
}

func newAutosave(delay time.Duration, fire func()) *autosave {
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &autosave{delay: delay, fire: fire}
}

// Arm cancels any pending timer and starts a fresh one.
func (a *autosave) Arm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		a.timer = nil
		a.mu.Unlock()
		a.fire()
	})
}

// Stop cancels the pending timer, reporting whether one was still armed
// and had not begun firing.
func (a *autosave) Stop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer == nil {
		return false
	}
	stopped := a.timer.Stop()
	a.timer = nil
	return stopped
}
