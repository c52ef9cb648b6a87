package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mockinterview/gateway"
)

type stubBackend struct {
	mu         sync.Mutex
	startErr   error
	answers    []string
	history    []gateway.HistoryPoint
	historyErr error
}

func (b *stubBackend) StartInterview(_ context.Context, _ gateway.StartRequest) (*gateway.StartResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return nil, b.startErr
	}
	return &gateway.StartResponse{ID: "42", History: []gateway.Message{
		{Role: gateway.RoleSystem, Content: "You are an interviewer"},
		{Role: gateway.RoleAssistant, Content: "Tell me about yourself."},
	}}, nil
}

func (b *stubBackend) SubmitChatTurn(_ context.Context, _ gateway.InterviewID, answer string) (*gateway.ChatResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, answer)
	return &gateway.ChatResponse{History: []gateway.Message{
		{Role: gateway.RoleAssistant, Content: "Tell me about yourself."},
		{Role: gateway.RoleUser, Content: answer},
		{Role: gateway.RoleAssistant, Content: "Why microservices?"},
	}}, nil
}

func (b *stubBackend) EndInterview(context.Context, gateway.InterviewID) (*gateway.EndResponse, error) {
	return &gateway.EndResponse{Feedback: &gateway.Feedback{
		TechnicalScore:     7,
		CommunicationScore: 8,
		OverallScore:       7.5,
		Summary:            "Solid fundamentals.",
		Strengths:          []string{"clear structure"},
		Weaknesses:         []string{"shallow on consistency"},
		Mistakes:           []string{"skipped failure modes"},
	}}, nil
}

func (b *stubBackend) FetchHistory(context.Context) ([]gateway.HistoryPoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history, b.historyErr
}

func (b *stubBackend) submitted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.answers...)
}

var errDown = errors.New("connection refused")

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// newBackendServer serves the interview API with canned answers.
func newBackendServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /interviews/start", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":7,"history":[{"role":"system","content":"be strict"},{"role":"assistant","content":"Tell me about yourself."}]}`))
	})
	mux.HandleFunc("POST /interviews/{id}/chat", func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)
		answer := strings.TrimSuffix(strings.TrimPrefix(body.String(), `{"answer":"`), `"}`)
		w.Write([]byte(`{"history":[{"role":"assistant","content":"Tell me about yourself."},` +
			`{"role":"user","content":"` + answer + `"},` +
			`{"role":"assistant","content":"Why microservices?"}]}`))
	})
	mux.HandleFunc("POST /interviews/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"feedback":{"technicalScore":7,"communicationScore":8,"overallScore":7.5,` +
			`"summary":"Solid fundamentals.","strengths":["clear structure"],` +
			`"weaknesses":["shallow on consistency"],"mistakes":["skipped failure modes"]}}`))
	})
	mux.HandleFunc("GET /interviews/history", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"date":"2024-05-01","score":6},{"date":"2024-06-01","score":7.5}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
