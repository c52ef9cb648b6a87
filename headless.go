package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"mockinterview/gateway"
	"mockinterview/log"
	"mockinterview/session"
)

const (
	idlePoll    = 10 * time.Millisecond
	idleTimeout = 60 * time.Second
)

// utteranceSource is implemented by scripted recognizers.
type utteranceSource interface {
	Say(text string) bool
}

// syncWriter serializes writes from the driver and the session sink.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// headless drives a session from line commands, one per line:
//
//	DOMAIN <name>       role for the next START
//	DIFFICULTY <level>  difficulty for the next START
//	START <resume.pdf>  upload the resume and begin
//	MIC                 toggle speech capture
//	SAY <text>          deliver a transcript to a scripted recognizer
//	ANSWER <text>       submit a typed answer
//	WAIT_IDLE           block until no request or utterance is in flight
//	SLEEP <ms>
//	END                 finish and fetch the report
//	REPORT | SAVE | COPY
//	RESET | HISTORY | STATUS | QUIT
type headless struct {
	ctrl       controller
	history    historyFetcher
	speech     utteranceSource
	out        io.Writer
	domain     string
	difficulty string
	width      int
	timeout    time.Duration
}

func (h *headless) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format+"\n", args...)
}

func (h *headless) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if strings.ToUpper(cmd) == "QUIT" {
			return nil
		}
		if err := h.exec(ctx, strings.ToUpper(cmd), arg); err != nil {
			h.printf("error: %v", err)
			log.Warnf("headless %s: %v", cmd, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (h *headless) exec(ctx context.Context, cmd, arg string) error {
	switch cmd {
	case "DOMAIN":
		h.domain = arg
	case "DIFFICULTY":
		h.difficulty = arg
	case "START":
		return h.ctrl.Start(ctx, session.StartRequest{
			Domain:     h.domain,
			Difficulty: h.difficulty,
			ResumePath: arg,
		})
	case "MIC":
		return h.ctrl.ToggleMic()
	case "SAY":
		if h.speech == nil {
			return fmt.Errorf("no scripted recognizer")
		}
		if !h.speech.Say(arg) {
			h.printf("not listening")
		}
	case "ANSWER":
		return h.ctrl.SubmitAnswer(ctx, arg)
	case "WAIT_IDLE":
		return h.waitIdle(ctx)
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("SLEEP wants milliseconds: %q", arg)
		}
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
		}
	case "END":
		return h.ctrl.End(ctx)
	case "REPORT":
		text, err := h.ctrl.ReportText()
		if err != nil {
			return err
		}
		fmt.Fprint(h.out, text)
	case "SAVE":
		path, err := h.ctrl.SaveReport()
		if err != nil {
			return err
		}
		h.printf("saved: %s", path)
	case "COPY":
		h.printf("%s", copyReport(h.ctrl))
	case "RESET":
		h.ctrl.Reset()
	case "HISTORY":
		var points []gateway.HistoryPoint
		if h.history != nil {
			points = loadHistory(ctx, h.history)
		}
		h.printf("%s", newHistoryView(nil).withPoints(points).render(h.width))
	case "STATUS":
		s := h.ctrl.Snapshot()
		h.printf("phase=%s status=%q listening=%t messages=%d", s.Phase, s.Status, s.Listening, len(s.Messages))
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

// waitIdle returns once no request is running and no utterance is waiting
// for the silence commit.
func (h *headless) waitIdle(ctx context.Context) error {
	timeout := h.timeout
	if timeout <= 0 {
		timeout = idleTimeout
	}
	deadline := time.After(timeout)
	tick := time.NewTicker(idlePoll)
	defer tick.Stop()
	for {
		if idle(h.ctrl.Snapshot()) {
			return nil
		}
		select {
		case <-tick.C:
		case <-deadline:
			return fmt.Errorf("still busy after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func idle(s session.Snapshot) bool {
	switch s.Status {
	case session.StatusUploading, session.StatusThinking, session.StatusGenerating:
		return false
	case session.StatusSendError:
		return true
	}
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Pending() {
		return false
	}
	return true
}
