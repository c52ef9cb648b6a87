package session

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"mockinterview/gateway"
	"mockinterview/log"
	"mockinterview/report"
)

// Controller owns one interview session. All methods are safe for concurrent
// use; network calls run without holding the lock and their results are
// applied only if the session they were issued for is still current.
type Controller struct {
	backend Backend
	input   SpeechInput
	output  SpeechOutput
	saver   FileSaver
	sink    EventSink
	clock   Clock
	now     func() time.Time
	delay   time.Duration

	defaultDomain     string
	defaultDifficulty string

	debounce *Debouncer
	ctx      context.Context
	cancel   context.CancelFunc

	mu         sync.Mutex
	version    uint64
	gen        uint64
	phase      Phase
	id         gateway.InterviewID
	messages   []Message
	feedback   *gateway.Feedback
	status     string
	listening  bool
	domain     string
	difficulty string
	turns      int
	closed     bool

	// epoch advances when End, Reset or Close abandons the current
	// utterance. A silence commit only fires for the epoch it was heard in.
	epoch      uint64
	heardEpoch uint64
	queue      []Snapshot
	delivering bool
}

func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:           backend,
		clock:             realClock{},
		now:               time.Now,
		delay:             DefaultSilenceDelay,
		defaultDomain:     defaultDomain,
		defaultDifficulty: defaultDifficulty,
		status:            StatusIdle,
		messages:          []Message{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.saver == nil {
		c.saver = report.DirSaver{Dir: "."}
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.debounce = NewDebouncer(c.clock, c.delay, c.commitUtterance)
	if c.input != nil {
		c.input.SetCallback(c.onTranscript)
	}
	return c
}

// Close releases capture, timers and playback. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	wasListening := c.listening
	c.listening = false
	turns := c.turns
	c.mu.Unlock()

	c.cancel()
	c.debounce.Stop()
	if wasListening {
		c.input.Stop()
	}
	if c.output != nil {
		c.output.Cancel()
	}
	log.SessionEnd(turns)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start uploads the resume and opens a new interview.
func (c *Controller) Start(ctx context.Context, req StartRequest) error {
	if strings.TrimSpace(req.ResumePath) == "" {
		return ErrNoResume
	}
	if !strings.EqualFold(filepath.Ext(req.ResumePath), ".pdf") {
		return ErrNotPDF
	}
	if req.Domain == "" {
		req.Domain = c.defaultDomain
	}
	if req.Difficulty == "" {
		req.Difficulty = c.defaultDifficulty
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseSetup {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	gen := c.gen
	c.status = StatusUploading
	c.changedLocked()
	c.mu.Unlock()

	resp, err := c.backend.StartInterview(ctx, gateway.StartRequest{
		Domain:     req.Domain,
		Difficulty: req.Difficulty,
		ResumePath: req.ResumePath,
	})

	c.mu.Lock()
	if c.gen != gen || c.phase != PhaseSetup {
		c.mu.Unlock()
		log.Warnf("discarding stale start response (gen %d)", gen)
		return ErrStaleResponse
	}
	if err != nil {
		c.status = statusErrorPrefix + err.Error()
		c.changedLocked()
		c.mu.Unlock()
		log.Errorf("start interview: %v", err)
		return err
	}

	c.id = resp.ID
	c.messages = FilterHistory(resp.History)
	c.domain = req.Domain
	c.difficulty = req.Difficulty
	c.phase = PhaseChat
	c.status = StatusStarted
	first, hasFirst := firstAssistant(c.messages)
	c.changedLocked()
	c.mu.Unlock()

	log.SessionStart(string(resp.ID), req.Domain, req.Difficulty)
	if hasFirst {
		log.Turn(gateway.RoleAssistant, first.Content)
		c.speak(first.Content)
	}
	return nil
}

// SubmitAnswer sends one user answer. Blank answers are ignored.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if c.phase != PhaseChat || c.id == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	gen, id := c.gen, c.id
	c.status = StatusThinking
	c.changedLocked()
	c.mu.Unlock()

	log.Turn(gateway.RoleUser, text)
	resp, err := c.backend.SubmitChatTurn(ctx, id, text)

	c.mu.Lock()
	if !c.currentLocked(gen, id, PhaseChat) {
		c.mu.Unlock()
		log.Warnf("discarding stale chat response for interview %s", id)
		return ErrStaleResponse
	}
	if err != nil {
		c.status = StatusSendError
		c.changedLocked()
		c.mu.Unlock()
		log.Errorf("chat turn: %v", err)
		return err
	}

	c.messages = FilterHistory(resp.History)
	c.turns++
	last, isAssistant := lastAssistant(c.messages)
	if isAssistant {
		c.status = StatusYourTurn
	}
	c.changedLocked()
	c.mu.Unlock()

	if isAssistant {
		log.Turn(gateway.RoleAssistant, last.Content)
		c.speak(last.Content)
	}
	return nil
}

// End stops capture and asks the backend for the report.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.id == "" {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.phase != PhaseChat {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	gen, id := c.gen, c.id
	wasListening := c.listening
	c.listening = false
	c.epoch++
	c.status = StatusGenerating
	c.changedLocked()
	c.mu.Unlock()

	c.debounce.Stop()
	if wasListening {
		c.input.Stop()
	}

	resp, err := c.backend.EndInterview(ctx, id)

	c.mu.Lock()
	if !c.currentLocked(gen, id, PhaseChat) {
		c.mu.Unlock()
		log.Warnf("discarding stale end response for interview %s", id)
		return ErrStaleResponse
	}
	if err == nil && (resp == nil || resp.Feedback == nil) {
		err = ErrNoFeedback
	}
	if err != nil {
		c.status = StatusReportError
		c.changedLocked()
		c.mu.Unlock()
		log.Errorf("end interview: %v", err)
		return err
	}

	fb := *resp.Feedback
	c.feedback = &fb
	c.phase = PhaseResult
	c.status = StatusReportReady
	c.changedLocked()
	c.mu.Unlock()

	log.Infof("report ready: interview=%s overall=%.1f", id, fb.OverallScore)
	return nil
}

// Reset discards the session and returns to setup.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.gen++
	c.epoch++
	wasListening := c.listening
	c.listening = false
	c.phase = PhaseSetup
	c.id = ""
	c.messages = []Message{}
	c.feedback = nil
	c.domain = ""
	c.difficulty = ""
	c.turns = 0
	c.status = StatusIdle
	c.changedLocked()
	c.mu.Unlock()

	c.debounce.Stop()
	if wasListening {
		c.input.Stop()
	}
	if c.output != nil {
		c.output.Cancel()
	}
}

// ToggleMic starts or stops speech capture. It is inert without a speech input.
func (c *Controller) ToggleMic() error {
	if c.input == nil {
		return ErrMicUnavailable
	}

	c.mu.Lock()
	if c.phase != PhaseChat {
		c.mu.Unlock()
		return ErrWrongPhase
	}
	listening := c.listening
	c.mu.Unlock()

	if listening {
		// Final results may still arrive while the recognizer drains, so the
		// flag stays up until Stop returns. A pending commit still fires.
		c.input.Stop()
		c.mu.Lock()
		c.listening = false
		c.changedLocked()
		c.mu.Unlock()
		return nil
	}

	if err := c.input.Start(); err != nil {
		c.mu.Lock()
		c.status = statusErrorPrefix + err.Error()
		c.changedLocked()
		c.mu.Unlock()
		log.Errorf("speech input start: %v", err)
		return err
	}
	if c.output != nil {
		c.output.Cancel()
	}
	c.mu.Lock()
	c.listening = true
	c.changedLocked()
	c.mu.Unlock()
	return nil
}

// SaveReport writes the plain-text report and returns its path.
func (c *Controller) SaveReport() (string, error) {
	text, now, err := c.reportText()
	if err != nil {
		return "", err
	}
	path, err := c.saver.Save(report.Filename(now), []byte(text))
	if err != nil {
		log.Errorf("save report: %v", err)
		return "", err
	}
	log.Info("report saved: " + path)
	return path, nil
}

func (c *Controller) ReportText() (string, error) {
	text, _, err := c.reportText()
	return text, err
}

func (c *Controller) reportText() (string, time.Time, error) {
	c.mu.Lock()
	fb := c.feedback
	role := c.domain
	c.mu.Unlock()
	if fb == nil {
		return "", time.Time{}, ErrNoFeedback
	}
	now := c.now()
	return report.Format(*fb, role, now), now, nil
}

func (c *Controller) onTranscript(text string) {
	c.mu.Lock()
	if c.phase != PhaseChat || !c.listening {
		c.mu.Unlock()
		return
	}
	c.messages = withPending(c.messages, text)
	c.heardEpoch = c.epoch
	c.changedLocked()
	c.mu.Unlock()

	c.debounce.Reset(text)
}

func (c *Controller) commitUtterance(text string) {
	c.mu.Lock()
	if c.heardEpoch != c.epoch || c.phase != PhaseChat {
		c.mu.Unlock()
		log.Warn("dropping silence commit abandoned by end or reset")
		return
	}
	wasListening := c.listening
	c.listening = false
	c.changedLocked()
	c.mu.Unlock()

	if wasListening {
		c.input.Stop()
	}
	if err := c.SubmitAnswer(c.ctx, text); err != nil {
		log.Warnf("silence commit: %v", err)
	}
}

func (c *Controller) speak(text string) {
	if c.output == nil {
		return
	}
	if err := c.output.Speak(text); err != nil {
		log.Warnf("speech output: %v", err)
	}
}

func (c *Controller) currentLocked(gen uint64, id gateway.InterviewID, phase Phase) bool {
	return c.gen == gen && c.id == id && c.phase == phase
}

func (c *Controller) snapshotLocked() Snapshot {
	var fb *gateway.Feedback
	if c.feedback != nil {
		cp := *c.feedback
		fb = &cp
	}
	return Snapshot{
		Version:     c.version,
		Phase:       c.phase,
		InterviewID: c.id,
		Messages:    slices.Clone(c.messages),
		Feedback:    fb,
		Status:      c.status,
		Listening:   c.listening,
		MicEnabled:  c.input != nil,
		Domain:      c.domain,
		Difficulty:  c.difficulty,
	}
}

// changedLocked bumps the version and queues a snapshot for the sink. A single
// goroutine delivers the queue in version order without holding the lock, so
// sinks may call back into the controller.
func (c *Controller) changedLocked() {
	c.version++
	if c.sink == nil {
		return
	}
	c.queue = append(c.queue, c.snapshotLocked())
	if !c.delivering {
		c.delivering = true
		go c.deliver()
	}
}

func (c *Controller) deliver() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		snap := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.sink.SessionChanged(snap)
	}
}
