package speech

import "sync"

// Fake is a scriptable recognizer: Say delivers a transcript as if it had
// been heard, but only while capture is running.
type Fake struct {
	mu      sync.Mutex
	cb      func(string)
	running bool
	starts  int
	err     error
}

func NewFake() *Fake { return &Fake{} }

// FailWith makes the next Start calls return err.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) SetCallback(cb func(transcript string)) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.running = true
	f.starts++
	return nil
}

func (f *Fake) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *Fake) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Say reports whether the transcript was delivered.
func (f *Fake) Say(text string) bool {
	f.mu.Lock()
	cb, running := f.cb, f.running
	f.mu.Unlock()
	if !running || cb == nil {
		return false
	}
	cb(text)
	return true
}
