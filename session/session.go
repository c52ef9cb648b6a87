// Package session drives one interview from setup through chat to the
// result screen. Browser-style capabilities (speech in, speech out, file
// save) are injected so the state machine runs anywhere.
package session

import (
	"context"
	"errors"
	"time"

	"mockinterview/gateway"
)

type Phase int

const (
	PhaseSetup Phase = iota
	PhaseChat
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseChat:
		return "chat"
	case PhaseResult:
		return "result"
	}
	return "unknown"
}

// Status lines shown to the user.
const (
	StatusIdle        = "Idle"
	StatusUploading   = "Uploading & Analyzing..."
	StatusStarted     = "Interview Started."
	StatusThinking    = "AI is thinking..."
	StatusYourTurn    = "Your turn."
	StatusSendError   = "Error sending."
	StatusGenerating  = "Generating Report Card..."
	StatusReportReady = "Report Ready."
	StatusReportError = "Error generating report."
	statusErrorPrefix = "Error: "
)

const (
	defaultDomain     = "Java Microservices"
	defaultDifficulty = "Hard"
)

var (
	ErrNoResume       = errors.New("select a resume PDF first")
	ErrNotPDF         = errors.New("resume must be a .pdf file")
	ErrNoSession      = errors.New("no active interview")
	ErrWrongPhase     = errors.New("action not available in this phase")
	ErrNoFeedback     = errors.New("no report available")
	ErrMicUnavailable = errors.New("speech input unavailable")
	ErrStaleResponse  = errors.New("response arrived for a session that is no longer active")
	ErrClosed         = errors.New("session closed")
)

// Backend is the subset of the gateway client the state machine needs.
type Backend interface {
	StartInterview(ctx context.Context, req gateway.StartRequest) (*gateway.StartResponse, error)
	SubmitChatTurn(ctx context.Context, id gateway.InterviewID, answer string) (*gateway.ChatResponse, error)
	EndInterview(ctx context.Context, id gateway.InterviewID) (*gateway.EndResponse, error)
}

// SpeechInput is a continuous recognizer with interim results. The callback
// receives the whole transcript of the current capture so far.
type SpeechInput interface {
	SetCallback(cb func(transcript string))
	Start() error
	Stop()
}

// SpeechOutput speaks text, interrupting anything already playing.
type SpeechOutput interface {
	Speak(text string) error
	Cancel()
}

// FileSaver stores a document locally and returns where it went.
type FileSaver interface {
	Save(name string, data []byte) (string, error)
}

// EventSink receives a fresh snapshot after every state change, in version
// order, from one delivery goroutine. Receivers that also read Snapshot
// directly should ignore versions older than one they already rendered.
type EventSink interface {
	SessionChanged(s Snapshot)
}

type Snapshot struct {
	Version     uint64
	Phase       Phase
	InterviewID gateway.InterviewID
	Messages    []Message
	Feedback    *gateway.Feedback
	Status      string
	Listening   bool
	MicEnabled  bool
	Domain      string
	Difficulty  string
}

type StartRequest struct {
	Domain     string
	Difficulty string
	ResumePath string
}

type Option func(*Controller)

func WithSpeechInput(in SpeechInput) Option {
	return func(c *Controller) { c.input = in }
}

func WithSpeechOutput(out SpeechOutput) Option {
	return func(c *Controller) { c.output = out }
}

func WithFileSaver(s FileSaver) Option {
	return func(c *Controller) { c.saver = s }
}

func WithEventSink(s EventSink) Option {
	return func(c *Controller) { c.sink = s }
}

func WithSilenceDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDefaults sets the domain and difficulty used when a start request
// leaves them empty.
func WithDefaults(domain, difficulty string) Option {
	return func(c *Controller) {
		if domain != "" {
			c.defaultDomain = domain
		}
		if difficulty != "" {
			c.defaultDifficulty = difficulty
		}
	}
}
