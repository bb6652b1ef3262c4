package results

import (
	"sync"
	"time"
)

// DefaultEmptyStateDelay is how long a list must stay empty before the empty state shows.
const DefaultEmptyStateDelay = 500 * time.Millisecond

// EmptyStateDebouncer delays the "no hotels found" flag so that a list that is
// empty only briefly, while filters are recomputed, never shows it.
type EmptyStateDebouncer struct {
	delay time.Duration

	mu      sync.Mutex
	empty   bool
	shown   bool
	gen     uint64
	timer   *time.Timer
	stopped bool
}

// NewEmptyStateDebouncer creates a debouncer. A non-positive delay uses DefaultEmptyStateDelay.
func NewEmptyStateDebouncer(delay time.Duration) *EmptyStateDebouncer {
	if delay <= 0 {
		delay = DefaultEmptyStateDelay
	}
	return &EmptyStateDebouncer{delay: delay}
}

// Update records whether the list is currently empty. Entering the empty state
// arms the timer; leaving it cancels the timer and hides the flag.
func (d *EmptyStateDebouncer) Update(empty bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || empty == d.empty {
		return
	}
	d.empty = empty
	d.shown = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !empty {
		return
	}

	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		// A timer that lost the race with Stop or Update must not flip the flag.
		if d.gen == gen && d.empty && !d.stopped {
			d.shown = true
		}
	})
}

// Shown reports whether the empty state should be displayed.
func (d *EmptyStateDebouncer) Shown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

// Stop disarms the timer. Later updates are ignored.
func (d *EmptyStateDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
