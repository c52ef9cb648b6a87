package main

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"mockinterview/session"
)

// sessionMsg carries a controller snapshot into the Bubble Tea loop.
type sessionMsg session.Snapshot

// tuiSink forwards snapshots to the running program. Snapshots that arrive
// before the program is attached are dropped; the model reads the initial
// state itself.
type tuiSink struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *tuiSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *tuiSink) SessionChanged(snap session.Snapshot) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(sessionMsg(snap))
	}
}

// consoleSink prints status changes and committed transcript turns as plain
// lines for the headless driver.
type consoleSink struct {
	mu      sync.Mutex
	w       io.Writer
	version uint64
	status  string
	phase   session.Phase
	printed int
}

func newConsoleSink(w io.Writer) *consoleSink {
	return &consoleSink{w: w, status: session.StatusIdle}
}

func (s *consoleSink) SessionChanged(snap session.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version <= s.version {
		return
	}
	s.version = snap.Version

	if snap.Phase != s.phase {
		fmt.Fprintf(s.w, "phase: %s\n", snap.Phase)
		s.phase = snap.Phase
	}
	if snap.Status != s.status {
		fmt.Fprintf(s.w, "status: %s\n", snap.Status)
		s.status = snap.Status
	}

	committed := snap.Messages
	if n := len(committed); n > 0 && committed[n-1].Pending() {
		committed = committed[:n-1]
	}
	if len(committed) < s.printed {
		s.printed = 0
	}
	for _, m := range committed[s.printed:] {
		fmt.Fprintf(s.w, "[%s] %s\n", m.Role, m.Content)
	}
	s.printed = len(committed)
}
