// Package gateway talks to the interview backend. Every call is a single
// attempt; callers decide what a failure means for the user.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"

	"mockinterview/log"
)

const (
	DefaultTimeout = 120 * time.Second
	maxErrorBody   = 512
)

type Client struct {
	baseURL string
	http    *TracedClient
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = NewTracedClient(d) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = &TracedClient{client: hc} }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewTracedClient(DefaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) StartInterview(ctx context.Context, req StartRequest) (*StartResponse, error) {
	f, err := os.Open(req.ResumePath)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("domain", req.Domain)
	writer.WriteField("difficulty", req.Difficulty)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename=%q`, filepath.Base(req.ResumePath)))
	h.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read resume: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var out StartResponse
	if err := c.do(ctx, "start", http.MethodPost, "/interviews/start", &body, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("start: backend returned no interview id")
	}
	if out.History == nil {
		out.History = []Message{}
	}
	return &out, nil
}

func (c *Client) SubmitChatTurn(ctx context.Context, id InterviewID, answer string) (*ChatResponse, error) {
	payload, err := json.Marshal(struct {
		Answer string `json:"answer"`
	}{answer})
	if err != nil {
		return nil, err
	}

	var out ChatResponse
	path := "/interviews/" + url.PathEscape(id.String()) + "/chat"
	if err := c.do(ctx, "chat", http.MethodPost, path, bytes.NewReader(payload), "application/json", &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		out.History = []Message{}
	}
	return &out, nil
}

func (c *Client) EndInterview(ctx context.Context, id InterviewID) (*EndResponse, error) {
	var out EndResponse
	path := "/interviews/" + url.PathEscape(id.String()) + "/end"
	if err := c.do(ctx, "end", http.MethodPost, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchHistory(ctx context.Context) ([]HistoryPoint, error) {
	var out []HistoryPoint
	if err := c.do(ctx, "history", http.MethodGet, "/interviews/history", nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []HistoryPoint{}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Errorf("%s request %s failed: %v", op, requestID, err)
		return fmt.Errorf("%s: %w", op, err)
	}

	m := resp.Metrics
	log.Request(op, resp.StatusCode, log.RequestMetrics{
		RequestID:  requestID,
		DNSMs:      ms(m.DNS),
		ConnectMs:  ms(m.TCP),
		TLSMs:      ms(m.TLS),
		TTFBMs:     ms(m.TTFB),
		TotalMs:    ms(m.Total),
		ConnReused: m.ConnReused,
		BytesIn:    len(resp.Body),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(resp.Body))
		msg = runewidth.Truncate(msg, maxErrorBody, "...")
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
