package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBluetooth(t *testing.T) {
	assert.True(t, IsBluetooth("Jabra Evolve2 65"))
	assert.True(t, IsBluetooth("Someone's AirPods Pro"))
	assert.False(t, IsBluetooth("Built-in Microphone"))
}

type staticContext struct{ devices []DeviceInfo }

func (s staticContext) Devices() ([]DeviceInfo, error) { return s.devices, nil }
func (s staticContext) NewCapture(*DeviceInfo, CaptureConfig) (CaptureDevice, error) {
	return nil, nil
}
func (s staticContext) Close() {}

func TestFindDevice(t *testing.T) {
	ctx := staticContext{devices: []DeviceInfo{
		{ID: "alsa_input.usb-Blue", Name: "Blue Yeti"},
		{ID: "alsa_input.pci", Name: "Built-in Audio Analog Stereo"},
	}}

	d, err := FindDevice(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = FindDevice(ctx, "blue yeti")
	require.NoError(t, err)
	assert.Equal(t, "alsa_input.usb-Blue", d.ID)

	d, err = FindDevice(ctx, "alsa_input.pci")
	require.NoError(t, err)
	assert.Equal(t, "Built-in Audio Analog Stereo", d.Name)

	d, err = FindDevice(ctx, "analog")
	require.NoError(t, err)
	assert.Equal(t, "alsa_input.pci", d.ID)

	_, err = FindDevice(ctx, "webcam")
	assert.Error(t, err)
}

func writeWAV(t *testing.T, pcm []byte) string {
	t.Helper()
	hdr := make([]byte, wavHeaderSize)
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+len(pcm)))
	copy(hdr[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 1)
	binary.LittleEndian.PutUint16(hdr[22:], Channels)
	binary.LittleEndian.PutUint32(hdr[24:], SampleRate)
	binary.LittleEndian.PutUint32(hdr[28:], BytesPerSec)
	binary.LittleEndian.PutUint16(hdr[32:], 2)
	binary.LittleEndian.PutUint16(hdr[34:], BitsPerSample)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(len(pcm)))

	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, append(hdr, pcm...), 0644))
	return path
}

func TestLoadWAV(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	got, err := LoadWAV(writeWAV(t, pcm))
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	bad := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(bad, []byte("not audio"), 0644))
	_, err = LoadWAV(bad)
	assert.Error(t, err)
}

func TestFakeCaptureFeedsClipThenSilence(t *testing.T) {
	pcm := make([]byte, fakeFrameSize*fakeFrameBytes*2+10)
	for i := range pcm {
		pcm[i] = 0x7f
	}
	ctx := NewFakeContext(pcm).WithInterval(0)
	c, err := ctx.NewCapture(nil, DefaultConfig())
	require.NoError(t, err)
	fc := c.(*FakeCapture)

	var mu sync.Mutex
	var got []byte
	c.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		got = append(got, data...)
		mu.Unlock()
	})
	require.NoError(t, c.Start())

	select {
	case <-fc.AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("clip never finished")
	}
	c.Stop()
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(got), len(pcm))
	assert.Equal(t, pcm, got[:len(pcm)])
}
