package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"mockinterview/audio"
	"mockinterview/log"
)

const (
	chunkMs        = 100
	chunkBytes     = audio.BytesPerSec * chunkMs / 1000
	maxDialRetries = 4
	writeTimeout   = 5 * time.Second
	drainTimeout   = 3 * time.Second
)

var closeStreamMsg = []byte(`{"type":"CloseStream"}`)

type result struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r result) text() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

// transcript accumulates finals and previews the current interim on top.
type transcript struct {
	committed string
	last      string
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// apply folds one result in and returns the text to publish, if it changed.
func (t *transcript) apply(r result) (string, bool) {
	if r.Type != "" && r.Type != "Results" {
		return "", false
	}
	var text string
	if r.IsFinal || r.SpeechFinal {
		t.committed = join(t.committed, r.text())
		text = t.committed
	} else {
		text = join(t.committed, r.text())
	}
	if text == "" || text == t.last {
		return "", false
	}
	t.last = text
	return text, true
}

// Stream is a continuous recognizer backed by Deepgram's live endpoint. Each
// Start opens a fresh connection and transcript; Stop flushes and drains it.
type Stream struct {
	cfg    Config
	audio  audio.Context
	device *audio.DeviceInfo
	dialer *websocket.Dialer

	cb atomic.Pointer[func(string)]

	mu  sync.Mutex
	cur *capture
}

func newStream(cfg Config, actx audio.Context, device *audio.DeviceInfo) *Stream {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = cfg.DialTimeout
	return &Stream{cfg: cfg, audio: actx, device: device, dialer: &dialer}
}

func (s *Stream) SetCallback(cb func(transcript string)) {
	s.cb.Store(&cb)
}

func (s *Stream) emit(text string) {
	if cb := s.cb.Load(); cb != nil && *cb != nil {
		(*cb)(text)
	}
}

func (s *Stream) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	defer cancel()
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}

	dev, err := s.audio.NewCapture(s.device, audio.DefaultConfig())
	if err != nil {
		conn.Close()
		return fmt.Errorf("open microphone: %w", err)
	}

	c := &capture{
		dev:  dev,
		conn: conn,
		pcm:  make(chan []byte, 64),
		done: make(chan struct{}),
		emit: s.emit,
	}
	dev.SetCallback(c.feed)

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return c.send(gctx) })
	g.Go(c.receive)
	go func() {
		if err := g.Wait(); err != nil {
			log.Warnf("speech stream: %v", err)
		}
		close(c.done)
	}()

	if err := dev.Start(); err != nil {
		c.shutdown()
		return fmt.Errorf("start microphone: %w", err)
	}
	s.cur = c
	log.Info("speech capture started")
	return nil
}

// Stop ends capture and waits for the recognizer to deliver its last finals.
// It is safe to call repeatedly and concurrently.
func (s *Stream) Stop() {
	s.mu.Lock()
	c := s.cur
	s.cur = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.shutdown()
	log.Info("speech capture stopped")
}

func (s *Stream) listenURL() (string, error) {
	u, err := url.Parse(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("speech endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", s.cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if s.cfg.Language != "" {
		q.Set("language", s.cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Stream) connect(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := s.listenURL()
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Token "+s.cfg.APIKey)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = s.cfg.DialTimeout

	attempt := 0
	start := time.Now()
	conn, err := backoff.RetryWithData(func() (*websocket.Conn, error) {
		attempt++
		conn, resp, err := s.dialer.DialContext(ctx, endpoint, header)
		if err == nil {
			return conn, nil
		}
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
				return nil, backoff.Permanent(fmt.Errorf("deepgram rejected the connection: %s", resp.Status))
			}
		}
		log.Warnf("deepgram dial attempt %d: %v", attempt, err)
		return nil, err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, maxDialRetries), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect speech service: %w", err)
	}
	log.Infof("deepgram connected in %dms (attempts=%d)", time.Since(start).Milliseconds(), attempt)
	return conn, nil
}

type capture struct {
	dev     audio.CaptureDevice
	conn    *websocket.Conn
	pcm     chan []byte
	done    chan struct{}
	emit    func(string)
	closing atomic.Bool

	mu     sync.Mutex
	closed bool
}

func (c *capture) feed(data []byte, _ uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.pcm <- data:
	default:
		// recognizer fell behind
	}
}

func (c *capture) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *capture) send(ctx context.Context) error {
	buf := make([]byte, 0, chunkBytes*2)
	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-c.pcm:
			if !ok {
				if len(buf) > 0 {
					if err := c.write(websocket.BinaryMessage, buf); err != nil {
						return fmt.Errorf("send audio: %w", err)
					}
				}
				if err := c.write(websocket.TextMessage, closeStreamMsg); err != nil {
					return fmt.Errorf("close stream: %w", err)
				}
				return nil
			}
			buf = append(buf, chunk...)
			if len(buf) < chunkBytes {
				continue
			}
			if err := c.write(websocket.BinaryMessage, buf); err != nil {
				return fmt.Errorf("send audio: %w", err)
			}
			buf = buf[:0]
		}
	}
}

func (c *capture) receive() error {
	var t transcript
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		var r result
		if err := json.Unmarshal(data, &r); err != nil {
			log.Warnf("speech: bad message: %v", err)
			continue
		}
		if text, ok := t.apply(r); ok {
			c.emit(text)
		}
	}
}

func (c *capture) shutdown() {
	c.dev.Stop()
	c.dev.ClearCallback()
	c.dev.Close()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.pcm)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(drainTimeout):
		log.Warn("speech stream drain timeout")
		c.closing.Store(true)
		c.conn.Close()
		<-c.done
	}
	c.closing.Store(true)
	c.conn.Close()
}
