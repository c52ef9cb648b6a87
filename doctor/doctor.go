// Package doctor checks that everything an interview needs is in place:
// configuration, backend, microphone, recognizer, voice, clipboard and terminal.
package doctor

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"mockinterview/audio"
	"mockinterview/clipboard"
	"mockinterview/config"
	"mockinterview/gateway"
	"mockinterview/speech"
)

type Status int

const (
	Pass Status = iota
	Warn
	Fail
	Skip
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	}
	return "SKIP"
}

type Check struct {
	Name string
	Run  func(ctx context.Context) (Status, string)
}

const (
	backendTimeout = 5 * time.Second
	micSample      = 2 * time.Second
	quietPeak      = 300
)

// Run executes the checks in order and returns an exit code (0 = no failures).
func Run(ctx context.Context, w io.Writer, checks []Check) int {
	fmt.Fprintln(w, "mockinterview doctor")
	fmt.Fprintln(w, "====================")

	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		status, detail := c.Run(ctx)
		fmt.Fprintf(w, "  %s: %s\n", status, detail)
		if status == Fail {
			failed++
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		fmt.Fprintln(w, "All checks passed!")
		return 0
	}
	fmt.Fprintf(w, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// Checks builds the standard diagnostics for cfg.
func Checks(cfg *config.Config) []Check {
	return []Check{
		{Name: "Configuration", Run: func(context.Context) (Status, string) { return checkConfig(cfg) }},
		{Name: "Backend", Run: func(ctx context.Context) (Status, string) {
			return checkBackend(ctx, gateway.New(cfg.BackendURL, gateway.WithTimeout(backendTimeout)))
		}},
		{Name: "Microphone", Run: func(context.Context) (Status, string) { return checkMicrophone(cfg) }},
		{Name: "Speech recognition", Run: func(context.Context) (Status, string) { return checkSpeech(cfg) }},
		{Name: "Voice", Run: func(context.Context) (Status, string) { return checkVoice(cfg) }},
		{Name: "Clipboard", Run: func(context.Context) (Status, string) { return checkClipboard() }},
		{Name: "Terminal", Run: func(context.Context) (Status, string) {
			return checkTerminal(int(os.Stdout.Fd()))
		}},
	}
}

// RunAll is the doctor command entry point.
func RunAll(ctx context.Context, w io.Writer, cfg *config.Config) int {
	stop := setupInterruptHandler()
	defer stop()
	return Run(ctx, w, Checks(cfg))
}

func checkConfig(cfg *config.Config) (Status, string) {
	if err := cfg.Validate(); err != nil {
		return Fail, err.Error()
	}
	src := "built-in defaults"
	if cfg.File != "" {
		src = cfg.File
	}
	return Pass, fmt.Sprintf("loaded from %s (backend %s)", src, cfg.BackendURL)
}

type historyFetcher interface {
	FetchHistory(ctx context.Context) ([]gateway.HistoryPoint, error)
}

func checkBackend(ctx context.Context, b historyFetcher) (Status, string) {
	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()
	points, err := b.FetchHistory(ctx)
	if err != nil {
		return Fail, fmt.Sprintf("backend unreachable: %v", err)
	}
	return Pass, fmt.Sprintf("reachable, %d past interview(s)", len(points))
}

func checkMicrophone(cfg *config.Config) (Status, string) {
	actx, err := audio.NewContext()
	if err != nil {
		return Warn, fmt.Sprintf("no audio backend: %v", err)
	}
	defer actx.Close()
	return sampleMicrophone(actx, cfg.Speech.Device, micSample)
}

func sampleMicrophone(actx audio.Context, deviceName string, d time.Duration) (Status, string) {
	device, err := audio.FindDevice(actx, deviceName)
	if err != nil {
		return Fail, err.Error()
	}
	name := "system default"
	if device != nil {
		name = device.Name
	}

	capture, err := actx.NewCapture(device, audio.DefaultConfig())
	if err != nil {
		return Fail, fmt.Sprintf("open %s: %v", name, err)
	}
	defer capture.Close()

	var mu sync.Mutex
	var peak int
	var bytes int
	capture.SetCallback(func(data []byte, _ uint32) {
		p := peakLevel(data)
		mu.Lock()
		bytes += len(data)
		peak = max(peak, p)
		mu.Unlock()
	})
	if err := capture.Start(); err != nil {
		return Fail, fmt.Sprintf("start %s: %v", name, err)
	}
	time.Sleep(d)
	capture.Stop()

	mu.Lock()
	defer mu.Unlock()
	switch {
	case bytes == 0:
		return Fail, fmt.Sprintf("%s delivered no audio", name)
	case peak < quietPeak:
		return Warn, fmt.Sprintf("%s is very quiet (peak %d); check input volume", name, peak)
	case audio.IsBluetooth(name):
		return Warn, fmt.Sprintf("%s looks like a Bluetooth headset; recognition quality may drop", name)
	}
	return Pass, fmt.Sprintf("%s, %.1f KB captured, peak %d", name, float64(bytes)/1024, peak)
}

// peakLevel returns the largest absolute S16LE sample in data.
func peakLevel(data []byte) int {
	peak := 0
	for i := 0; i+1 < len(data); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(data[i:])))
		if s < 0 {
			s = -s
		}
		peak = max(peak, s)
	}
	return peak
}

func checkSpeech(cfg *config.Config) (Status, string) {
	if !cfg.SpeechEnabled() {
		return Warn, "speech recognition disabled (set DEEPGRAM_API_KEY); answers must be typed"
	}
	actx, err := audio.NewContext()
	if err != nil {
		return Fail, fmt.Sprintf("no audio backend: %v", err)
	}
	defer actx.Close()

	stream, err := speech.New(speech.Config{
		Provider: cfg.Speech.Provider,
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.Speech.Model,
		Language: cfg.Language,
		Device:   cfg.Speech.Device,
	}, actx)
	if err != nil {
		return Fail, err.Error()
	}
	start := time.Now()
	if err := stream.Start(); err != nil {
		return Fail, err.Error()
	}
	connected := time.Since(start)
	stream.Stop()
	return Pass, fmt.Sprintf("connected to Deepgram (%s) in %dms", cfg.Speech.Model, connected.Milliseconds())
}

func checkVoice(cfg *config.Config) (Status, string) {
	if !cfg.Voice.Enabled {
		return Skip, "voice output disabled"
	}
	v, err := speech.NewVoice(cfg.Voice.Command)
	if err != nil {
		return Warn, fmt.Sprintf("%v; questions will only be shown as text", err)
	}
	if err := v.Speak("Voice check."); err != nil {
		return Fail, err.Error()
	}
	return Pass, "using " + v.Command()
}

func checkClipboard() (Status, string) {
	if !clipboard.Available() {
		return Warn, clipboard.ErrUnavailable.Error()
	}
	return Pass, "clipboard available"
}

func checkTerminal(fd int) (Status, string) {
	if !term.IsTerminal(fd) {
		return Warn, "stdout is not a terminal; the headless driver will be used"
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return Warn, fmt.Sprintf("terminal size unknown: %v", err)
	}
	if w < 60 || h < 20 {
		return Warn, fmt.Sprintf("%dx%d is cramped; 80x24 or larger recommended", w, h)
	}
	return Pass, fmt.Sprintf("%dx%d", w, h)
}
