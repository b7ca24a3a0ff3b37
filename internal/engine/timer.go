package engine

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// ActionTimer is the shot clock for the player currently owed an action.
// Arming replaces any previous deadline, and a replaced or cancelled timer
// never fires. Fire callbacks run on the clock's goroutine; callers are
// expected to enqueue work rather than mutate table state in them.
type ActionTimer struct {
	clock quartz.Clock

	mu       sync.Mutex
	timer    *quartz.Timer
	gen      uint64
	deadline time.Time
	fire     func()
}

// NewActionTimer creates a timer on the given clock. Tests pass a
// quartz.Mock to drive expiry deterministically.
func NewActionTimer(clock quartz.Clock) *ActionTimer {
	return &ActionTimer{clock: clock}
}

// Arm starts (or restarts) the clock. When d elapses without a further Arm,
// Extend or Cancel, fire is invoked exactly once.
func (at *ActionTimer) Arm(d time.Duration, fire func()) {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.stopLocked()
	at.gen++
	at.fire = fire
	at.deadline = at.clock.Now().Add(d)
	at.startLocked(d)
}

// Extend pushes the armed deadline out by d, keeping the original fire
// callback. It reports false when no timer is armed.
func (at *ActionTimer) Extend(d time.Duration) bool {
	at.mu.Lock()
	defer at.mu.Unlock()
	if at.timer == nil {
		return false
	}
	at.stopLocked()
	at.gen++
	at.deadline = at.deadline.Add(d)
	remaining := at.deadline.Sub(at.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	at.startLocked(remaining)
	return true
}

// Cancel disarms the timer. A concurrent in-flight fire is suppressed.
func (at *ActionTimer) Cancel() {
	at.mu.Lock()
	defer at.mu.Unlock()
	at.stopLocked()
	at.gen++
	at.deadline = time.Time{}
	at.fire = nil
}

// Deadline returns when the armed timer fires, or the zero time.
func (at *ActionTimer) Deadline() time.Time {
	at.mu.Lock()
	defer at.mu.Unlock()
	return at.deadline
}

func (at *ActionTimer) stopLocked() {
	if at.timer != nil {
		at.timer.Stop()
		at.timer = nil
	}
}

func (at *ActionTimer) startLocked(d time.Duration) {
	gen := at.gen
	at.timer = at.clock.AfterFunc(d, func() {
		at.mu.Lock()
		stale := gen != at.gen
		fire := at.fire
		if !stale {
			at.timer = nil
			at.deadline = time.Time{}
			at.fire = nil
		}
		at.mu.Unlock()
		if !stale && fire != nil {
			fire()
		}
	})
}
