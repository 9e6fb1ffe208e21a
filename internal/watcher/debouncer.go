package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid events per path: each Add cancels any prior
// pending timer for that path and restarts the window with the latest
// event (last-event-wins), per spec.md §4.8.
type Debouncer struct {
	window  time.Duration
	onFire  func(FileEvent)
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a Debouncer that calls onFire once per path after
// window has elapsed since that path's most recent Add.
func NewDebouncer(window time.Duration, onFire func(FileEvent)) *Debouncer {
	return &Debouncer{
		window: window,
		onFire: onFire,
		timers: make(map[string]*time.Timer),
	}
}

// Add registers ev, resetting the debounce timer for ev.Path.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if t, ok := d.timers[ev.Path]; ok {
		t.Stop()
	}
	d.timers[ev.Path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, ev.Path)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.onFire(ev)
		}
	})
}

// Stop cancels all pending timers; no further onFire calls occur.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}
