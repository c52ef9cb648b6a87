package session

import (
	"sync"
	"testing"
	"time"
)

type fireLog struct {
	mu    sync.Mutex
	texts []string
}

func (l *fireLog) fire(text string) {
	l.mu.Lock()
	l.texts = append(l.texts, text)
	l.mu.Unlock()
}

func (l *fireLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.texts...)
}

func newTestDebouncer() (*Debouncer, *manualClock, *fireLog) {
	clock := &manualClock{}
	fl := &fireLog{}
	return NewDebouncer(clock, DefaultSilenceDelay, fl.fire), clock, fl
}

func TestDebounceFiresAfterPause(t *testing.T) {
	d, clock, fl := newTestDebouncer()
	d.Reset("hello")

	clock.Advance(DefaultSilenceDelay - time.Millisecond)
	if got := fl.all(); len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}
	clock.Advance(time.Millisecond)
	if got := fl.all(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected one fire with %q, got %v", "hello", got)
	}
}

func TestDebounceRapidUpdatesPostpone(t *testing.T) {
	d, clock, fl := newTestDebouncer()

	// 20 updates 500ms apart: never a full 2.5s pause
	words := ""
	for i := 0; i < 20; i++ {
		words += "w"
		d.Reset(words)
		clock.Advance(500 * time.Millisecond)
		if got := fl.all(); len(got) != 0 {
			t.Fatalf("fired during speech at update %d: %v", i, got)
		}
	}

	clock.Advance(DefaultSilenceDelay)
	got := fl.all()
	if len(got) != 1 {
		t.Fatalf("expected exactly one fire after pause, got %d", len(got))
	}
	if got[0] != words {
		t.Fatalf("fired with %q, want latest snapshot %q", got[0], words)
	}
}

func TestDebounceSinglePauseSingleFire(t *testing.T) {
	d, clock, fl := newTestDebouncer()
	d.Reset("a")
	clock.Advance(10 * DefaultSilenceDelay)
	clock.Advance(10 * DefaultSilenceDelay)
	if got := fl.all(); len(got) != 1 {
		t.Fatalf("expected 1 fire, got %d", len(got))
	}
	if d.Pending() {
		t.Fatal("nothing should be pending after firing")
	}
}

func TestDebounceStop(t *testing.T) {
	d, clock, fl := newTestDebouncer()
	d.Reset("a")
	if !d.Stop() {
		t.Fatal("Stop should report a pending commit")
	}
	if d.Stop() {
		t.Fatal("second Stop should report nothing pending")
	}
	clock.Advance(DefaultSilenceDelay * 2)
	if got := fl.all(); len(got) != 0 {
		t.Fatalf("stopped debouncer fired: %v", got)
	}
}

func TestDebounceSupersededCallbackIgnored(t *testing.T) {
	// A clock whose Stop never succeeds, like a runtime timer that already
	// queued its callback.
	clock := &manualClock{}
	fl := &fireLog{}
	d := NewDebouncer(leakyClock{clock}, DefaultSilenceDelay, fl.fire)

	d.Reset("old")
	clock.Advance(time.Second)
	d.Reset("new")
	clock.Advance(DefaultSilenceDelay)

	got := fl.all()
	if len(got) != 1 || got[0] != "new" {
		t.Fatalf("expected only the latest text to fire, got %v", got)
	}
}

type leakyClock struct{ c *manualClock }

func (l leakyClock) AfterFunc(d time.Duration, f func()) Timer {
	l.c.AfterFunc(d, f)
	return noStop{}
}

type noStop struct{}

func (noStop) Stop() bool { return false }

func TestDebounceRealClock(t *testing.T) {
	fired := make(chan string, 2)
	d := NewDebouncer(nil, 20*time.Millisecond, func(text string) { fired <- text })
	d.Reset("one")
	d.Reset("two")

	select {
	case got := <-fired:
		if got != "two" {
			t.Fatalf("got %q, want %q", got, "two")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}

	select {
	case extra := <-fired:
		t.Fatalf("unexpected second fire: %q", extra)
	case <-time.After(60 * time.Millisecond):
	}
}
