// Package speech turns microphone audio into live transcripts and speaks
// interviewer questions aloud.
package speech

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mockinterview/audio"
)

var ErrUnsupported = errors.New("speech recognition unavailable")

const (
	ProviderDeepgram = "deepgram"
	ProviderNone     = "none"

	defaultEndpoint    = "wss://api.deepgram.com/v1/listen"
	defaultModel       = "nova-3"
	defaultDialTimeout = 10 * time.Second
)

type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Language    string
	Device      string
	Endpoint    string
	DialTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return c
}

// New builds the live recognizer. It returns ErrUnsupported when speech is
// disabled, no API key is configured, or no audio backend could be opened;
// callers then run without voice input.
func New(cfg Config, actx audio.Context) (*Stream, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderDeepgram:
	case ProviderNone:
		return nil, ErrUnsupported
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnsupported, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no Deepgram API key", ErrUnsupported)
	}
	if actx == nil {
		return nil, fmt.Errorf("%w: no audio backend", ErrUnsupported)
	}
	device, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		return nil, err
	}
	return newStream(cfg.withDefaults(), actx, device), nil
}
