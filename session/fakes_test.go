package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"mockinterview/gateway"
)

type fakeBackend struct {
	mu        sync.Mutex
	starts    []gateway.StartRequest
	chats     []string
	ends      []gateway.InterviewID
	startFunc func() (*gateway.StartResponse, error)
	chatFunc  func(answer string) (*gateway.ChatResponse, error)
	endFunc   func() (*gateway.EndResponse, error)
}

func (b *fakeBackend) StartInterview(_ context.Context, req gateway.StartRequest) (*gateway.StartResponse, error) {
	b.mu.Lock()
	b.starts = append(b.starts, req)
	fn := b.startFunc
	b.mu.Unlock()
	return fn()
}

func (b *fakeBackend) SubmitChatTurn(_ context.Context, _ gateway.InterviewID, answer string) (*gateway.ChatResponse, error) {
	b.mu.Lock()
	b.chats = append(b.chats, answer)
	fn := b.chatFunc
	b.mu.Unlock()
	return fn(answer)
}

func (b *fakeBackend) EndInterview(_ context.Context, id gateway.InterviewID) (*gateway.EndResponse, error) {
	b.mu.Lock()
	b.ends = append(b.ends, id)
	fn := b.endFunc
	b.mu.Unlock()
	return fn()
}

func (b *fakeBackend) chatCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.chats...)
}

type fakeInput struct {
	mu       sync.Mutex
	cb       func(string)
	running  bool
	starts   int
	stops    int
	startErr error
}

func (f *fakeInput) SetCallback(cb func(string)) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *fakeInput) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	f.starts++
	return nil
}

func (f *fakeInput) Stop() {
	f.mu.Lock()
	f.running = false
	f.stops++
	f.mu.Unlock()
}

func (f *fakeInput) say(text string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(text)
}

type fakeOutput struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
}

func (f *fakeOutput) Speak(text string) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeOutput) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

type fakeSaver struct {
	name string
	data []byte
}

func (f *fakeSaver) Save(name string, data []byte) (string, error) {
	f.name = name
	f.data = data
	return "/reports/" + name, nil
}

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
