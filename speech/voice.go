package speech

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"mockinterview/log"
)

var ErrNoVoice = errors.New("no text-to-speech command found")

// voiceCandidates lists synthesizers in preference order per platform.
func voiceCandidates() [][]string {
	switch runtime.GOOS {
	case "darwin":
		return [][]string{{"say"}}
	case "windows":
		return nil
	}
	return [][]string{
		{"espeak-ng", "-s", "165"},
		{"espeak", "-s", "165"},
		{"spd-say", "--wait"},
	}
}

// Voice speaks text through an external synthesizer. A new utterance
// interrupts the one playing.
type Voice struct {
	argv []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewVoice resolves command, or the first available platform synthesizer
// when command is empty. Extra words in command are passed as arguments
// before the text.
func NewVoice(command string) (*Voice, error) {
	if fields := strings.Fields(command); len(fields) > 0 {
		path, err := exec.LookPath(fields[0])
		if err != nil {
			return nil, fmt.Errorf("voice command %q: %w", fields[0], err)
		}
		return &Voice{argv: append([]string{path}, fields[1:]...)}, nil
	}
	for _, argv := range voiceCandidates() {
		if path, err := exec.LookPath(argv[0]); err == nil {
			return &Voice{argv: append([]string{path}, argv[1:]...)}, nil
		}
	}
	return nil, ErrNoVoice
}

func (v *Voice) Command() string { return strings.Join(v.argv, " ") }

func (v *Voice) Speak(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelLocked()

	cmd := exec.Command(v.argv[0], append(v.argv[1:], text)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("voice: %w", err)
	}
	v.cmd = cmd
	go func() {
		_ = cmd.Wait()
		v.mu.Lock()
		if v.cmd == cmd {
			v.cmd = nil
		}
		v.mu.Unlock()
	}()
	return nil
}

func (v *Voice) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelLocked()
}

func (v *Voice) Speaking() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cmd != nil
}

func (v *Voice) cancelLocked() {
	if v.cmd == nil || v.cmd.Process == nil {
		return
	}
	if err := v.cmd.Process.Kill(); err != nil {
		log.Warnf("voice cancel: %v", err)
	}
	v.cmd = nil
}
