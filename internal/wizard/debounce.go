// internal/wizard/debounce.go
package wizard

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into a single call of fn, run
// once delay has passed since the last Trigger. Runs of fn never overlap.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu       sync.Mutex
	idle     *sync.Cond
	timer    *time.Timer
	gen      uint64
	pending  bool
	stopped  bool
	inflight int

	runMu sync.Mutex
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	d := &Debouncer{delay: delay, fn: fn}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Trigger cancels any scheduled run and schedules a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.inflight++
	d.mu.Unlock()

	d.run()
}

func (d *Debouncer) run() {
	defer func() {
		d.mu.Lock()
		d.inflight--
		if d.inflight == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.fn()
}

// Pending reports whether a run is scheduled but has not started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a scheduled call now, on the caller's goroutine. It reports
// whether anything was pending.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return false
	}
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.inflight++
	d.mu.Unlock()

	d.run()
	return true
}

// Stop cancels a scheduled call without running it and waits for a run in
// progress. Trigger is a no-op afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
	for d.inflight > 0 {
		d.idle.Wait()
	}
}
