package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	wavHeaderSize  = 44
	fakeFrameSize  = 1024
	fakeFrameBytes = 2 // 16-bit mono
)

// LoadWAV reads a 16 kHz mono S16LE WAV file and returns its PCM payload.
func LoadWAV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%s: not a WAV file", path)
	}
	return data[wavHeaderSize:], nil
}

// FakeContext replays fixed PCM instead of opening a microphone. Each
// capture plays the clip once in real time and then feeds silence.
type FakeContext struct {
	pcm      []byte
	interval time.Duration
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{
		pcm:      pcm,
		interval: time.Duration(fakeFrameSize) * time.Second / SampleRate,
	}
}

// WithInterval overrides the pacing between frames; zero feeds as fast as possible.
func (f *FakeContext) WithInterval(d time.Duration) *FakeContext {
	f.interval = d
	return f
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, interval: f.interval, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	pcm      []byte
	interval time.Duration

	mu        sync.Mutex
	cb        DataCallback
	running   bool
	stopCh    chan struct{}
	feedDone  chan struct{}
	audioDone chan struct{}
}

// AudioDone is closed once the clip has been fed in full.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	f.running = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stopCh, feedDone, audioDone := f.stopCh, f.feedDone, f.audioDone

	go func() {
		defer close(feedDone)
		chunkBytes := fakeFrameSize * fakeFrameBytes
		silence := make([]byte, chunkBytes)
		pos := 0
		finished := false
		for {
			select {
			case <-stopCh:
				return
			default:
			}

			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					end := min(pos+chunkBytes, len(f.pcm))
					chunk := make([]byte, end-pos)
					copy(chunk, f.pcm[pos:end])
					cb(chunk, uint32(len(chunk)/fakeFrameBytes))
					pos = end
				} else {
					if !finished {
						finished = true
						close(audioDone)
					}
					cb(silence, fakeFrameSize)
				}
			}

			wait := f.interval
			if wait <= 0 {
				wait = time.Millisecond
			}
			select {
			case <-stopCh:
				return
			case <-time.After(wait):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	done := f.feedDone
	f.mu.Unlock()

	<-done

	f.mu.Lock()
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{}) // reset for replay
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
