package session

import (
	"sync"
	"time"
)

// DefaultSilenceDelay is how long speech must pause before an utterance is committed.
const DefaultSilenceDelay = 2500 * time.Millisecond

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer commits the latest transcript once updates stop arriving for delay.
type Debouncer struct {
	clock Clock
	delay time.Duration
	fire  func(text string)

	mu    sync.Mutex
	seq   uint64
	timer Timer
}

func NewDebouncer(clock Clock, delay time.Duration, fire func(text string)) *Debouncer {
	if clock == nil {
		clock = realClock{}
	}
	return &Debouncer{clock: clock, delay: delay, fire: fire}
}

// Reset cancels any pending commit and schedules text to fire after the delay.
func (d *Debouncer) Reset(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// superseded or stopped after the runtime already queued us
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.seq++
		d.timer = nil
		d.mu.Unlock()
		d.fire(text)
	})
}

// Stop cancels a pending commit. It reports whether one was pending.
func (d *Debouncer) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	return pending
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
