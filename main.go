package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mockinterview/audio"
	"mockinterview/config"
	"mockinterview/doctor"
	"mockinterview/gateway"
	"mockinterview/log"
	"mockinterview/report"
	"mockinterview/session"
	"mockinterview/shutdown"
	"mockinterview/speech"
)

var version = "dev"

var errChecksFailed = errors.New("one or more checks failed")

type rootFlags struct {
	configFile string
	envFile    string
	logPath    string
	headless   bool
	noVoice    bool
	wav        string
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"backend_url":   "backend",
	"speech.device": "device",
	"domain":        "domain",
	"difficulty":    "difficulty",
	"report_dir":    "report-dir",
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:   "mockinterview",
		Short: "Practice technical interviews against an AI interviewer",
		Long: `mockinterview runs a voice-driven mock interview in the terminal.

Pick a role and difficulty, attach your resume as a PDF, and answer the
interviewer's questions by speaking or typing. When you finish, a report card
with scores and feedback can be saved or copied.

Lines read from stdin drive the session when stdout is not a terminal or
--headless is given.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInterview(cmd, &f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "config file (default: ./mockinterview.yaml or the user config dir)")
	pf.StringVar(&f.envFile, "env-file", "", "dotenv file to load (default: .env)")
	pf.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.String("backend", "", "interview backend base URL")
	pf.String("device", "", "microphone device name or ID")

	fl := cmd.Flags()
	fl.String("domain", "", "default role shown in the setup form")
	fl.String("difficulty", "", "default difficulty: Easy, Medium or Hard")
	fl.String("report-dir", "", "directory reports are saved to")
	fl.BoolVar(&f.headless, "headless", false, "drive the session from stdin commands instead of the terminal UI")
	fl.BoolVar(&f.noVoice, "no-voice", false, "do not read questions aloud")
	fl.StringVar(&f.wav, "wav", "", "feed a 16 kHz mono WAV file to the recognizer instead of the microphone")

	cmd.AddCommand(newHistoryCommand(&f), newDoctorCommand(&f))
	return cmd
}

func newHistoryCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the overall score of past interviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := setup(cmd, f)
			if err != nil {
				return err
			}
			defer cleanup()

			client := gateway.New(cfg.BackendURL, gateway.WithTimeout(cfg.RequestTimeout))
			points := loadHistory(cmd.Context(), client)
			fmt.Fprintln(cmd.OutOrStdout(), newHistoryView(nil).withPoints(points).render(terminalWidth()))
			return nil
		},
	}
}

func newDoctorCommand(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, backend, microphone and speech services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cleanup, err := setup(cmd, f)
			if err != nil {
				return err
			}
			defer cleanup()

			if doctor.RunAll(cmd.Context(), cmd.OutOrStdout(), cfg) != 0 {
				return errChecksFailed
			}
			return nil
		},
	}
}

// setup prepares logging and loads the configuration. The returned cleanup
// closes the log files.
func setup(cmd *cobra.Command, f *rootFlags) (*config.Config, func(), error) {
	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	cfg, err := config.Load(config.Options{
		File:     f.configFile,
		EnvFile:  f.envFile,
		Flags:    cmd.Flags(),
		FlagKeys: flagKeys,
	})
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	if f.noVoice {
		cfg.Voice.Enabled = false
	}
	log.Infof("config loaded: file=%q backend=%s speech=%t voice=%t", cfg.File, cfg.BackendURL, cfg.SpeechEnabled(), cfg.Voice.Enabled)
	return cfg, log.Close, nil
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func runInterview(cmd *cobra.Command, f *rootFlags) error {
	cfg, cleanup, err := setup(cmd, f)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := shutdown.Context(cmd.Context())
	defer stop()

	headlessMode := f.headless || !term.IsTerminal(int(os.Stdout.Fd()))

	input, closeInput, err := speechInput(cfg, f, headlessMode)
	if err != nil {
		return err
	}
	defer closeInput()

	client := gateway.New(cfg.BackendURL, gateway.WithTimeout(cfg.RequestTimeout))
	opts := []session.Option{
		session.WithDefaults(cfg.Domain, cfg.Difficulty),
		session.WithSilenceDelay(cfg.SilenceDelay),
		session.WithFileSaver(report.DirSaver{Dir: cfg.ReportDir}),
	}
	if input != nil {
		opts = append(opts, session.WithSpeechInput(input))
	}
	if cfg.Voice.Enabled {
		voice, err := speech.NewVoice(cfg.Voice.Command)
		if err != nil {
			log.Warnf("voice output disabled: %v", err)
		} else {
			opts = append(opts, session.WithSpeechOutput(voice))
		}
	}

	if headlessMode {
		out := &syncWriter{w: cmd.OutOrStdout()}
		ctrl := session.New(client, append(opts, session.WithEventSink(newConsoleSink(out)))...)
		defer ctrl.Close()

		h := &headless{
			ctrl:       ctrl,
			history:    client,
			out:        out,
			domain:     cfg.Domain,
			difficulty: cfg.Difficulty,
			width:      72,
		}
		if src, ok := input.(utteranceSource); ok {
			h.speech = src
		}
		if err := h.run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	sink := &tuiSink{}
	ctrl := session.New(client, append(opts, session.WithEventSink(sink))...)
	defer ctrl.Close()

	m := newTUIModel(ctx, ctrl, client, setupChoices{
		domains:    cfg.Domains,
		levels:     config.Difficulties,
		domain:     cfg.Domain,
		difficulty: cfg.Difficulty,
	}, nil)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.attach(p)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// speechInput picks the recognizer: a WAV replay, the live microphone, a
// scripted fake in headless mode, or none. The returned func releases audio.
func speechInput(cfg *config.Config, f *rootFlags, headlessMode bool) (session.SpeechInput, func(), error) {
	noop := func() {}
	scfg := speech.Config{
		Provider: cfg.Speech.Provider,
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.Speech.Model,
		Language: cfg.Language,
		Device:   cfg.Speech.Device,
	}

	if f.wav != "" {
		pcm, err := audio.LoadWAV(f.wav)
		if err != nil {
			return nil, noop, err
		}
		stream, err := speech.New(scfg, audio.NewFakeContext(pcm))
		if err != nil {
			return nil, noop, fmt.Errorf("--wav: %w", err)
		}
		log.Infof("speech input: replaying %s (%.1fs)", f.wav, float64(len(pcm))/audio.BytesPerSec)
		return stream, noop, nil
	}

	if cfg.SpeechEnabled() {
		actx, err := audio.NewContext()
		if err == nil {
			stream, err := speech.New(scfg, actx)
			if err == nil {
				log.Infof("speech input: deepgram %s", cfg.Speech.Model)
				return stream, actx.Close, nil
			}
			actx.Close()
			log.Warnf("speech input disabled: %v", err)
		} else {
			log.Warnf("speech input disabled: no audio backend: %v", err)
		}
	}

	if headlessMode {
		log.Info("speech input: scripted (SAY command)")
		return speech.NewFake(), noop, nil
	}
	log.Info("speech input: none, answers must be typed")
	return nil, noop, nil
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return min(w, 100)
	}
	return 72
}
