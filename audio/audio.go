package audio

import (
	"fmt"
	"strings"
)

// Capture format expected by the speech recognizer: 16 kHz mono S16LE.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BytesPerSec   = SampleRate * Channels * BitsPerSample / 8
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether it is a headset that
// drops to low-quality mono when the microphone opens.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultConfig is the format the recognizer consumes.
func DefaultConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice delivers PCM to the current callback between Start and Stop.
// Stop returns only after the callback has stopped being invoked.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FindDevice resolves a configured device name. An empty query selects the
// system default and returns nil.
func FindDevice(ctx Context, query string) (*DeviceInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	lower := strings.ToLower(query)
	for i := range devices {
		if devices[i].ID == query || strings.EqualFold(devices[i].Name, query) {
			return &devices[i], nil
		}
	}
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), lower) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", query)
}
