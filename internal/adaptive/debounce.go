package adaptive

import (
	"sync"
	"time"
)

// Debouncer runs a callback once its input has been quiet for a fixed delay.
// Each Arm replaces the pending callback (trailing edge only).
type Debouncer struct {
	clock Clock
	timer Timer
	delay time.Duration
	mu    sync.Mutex
	seq   uint64
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Arm cancels any pending callback and schedules fn after the quiet period.
func (d *Debouncer) Arm(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if seq != d.seq {
			// Re-armed or cancelled after the timer fired.
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	pending := d.timer != nil
	d.stopLocked()
	d.seq++
	return pending
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
