package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeResume(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644))
	return path
}

func TestStartInterviewMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interviews/start", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Java Microservices", r.FormValue("domain"))
		assert.Equal(t, "Hard", r.FormValue("difficulty"))

		file, hdr, err := r.FormFile("resume")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cv.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, "%PDF-1.4 fake", string(data))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"abc123","history":[{"role":"system","content":"be strict"},{"role":"assistant","content":"Tell me about yourself"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	resp, err := c.StartInterview(context.Background(), StartRequest{
		Domain:     "Java Microservices",
		Difficulty: "Hard",
		ResumePath: writeResume(t),
	})
	require.NoError(t, err)
	assert.Equal(t, InterviewID("abc123"), resp.ID)
	require.Len(t, resp.History, 2)
	assert.Equal(t, RoleAssistant, resp.History[1].Role)
}

func TestStartInterviewNumericID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":42,"history":null}`)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).StartInterview(context.Background(), StartRequest{ResumePath: writeResume(t)})
	require.NoError(t, err)
	assert.Equal(t, InterviewID("42"), resp.ID)
	assert.NotNil(t, resp.History)
	assert.Empty(t, resp.History)
}

func TestStartInterviewMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"history":[]}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).StartInterview(context.Background(), StartRequest{ResumePath: writeResume(t)})
	require.Error(t, err)
}

func TestStartInterviewMissingFile(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL).StartInterview(context.Background(), StartRequest{ResumePath: filepath.Join(t.TempDir(), "nope.pdf")})
	require.Error(t, err)
	assert.False(t, called, "no request may be sent without a readable resume")
}

func TestSubmitChatTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interviews/a%2Fb/chat", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Answer string `json:"answer"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "I like Go", body.Answer)

		io.WriteString(w, `{"history":[{"role":"user","content":"I like Go"},{"role":"assistant","content":"Why?"}]}`)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).SubmitChatTurn(context.Background(), "a/b", "I like Go")
	require.NoError(t, err)
	require.Len(t, resp.History, 2)
	assert.Equal(t, "Why?", resp.History[1].Content)
}

func TestEndInterview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/interviews/abc123/end", r.URL.Path)
		io.WriteString(w, `{"feedback":{"technicalScore":7,"communicationScore":8,"overallScore":7.5,"summary":"Good","strengths":["clarity"],"weaknesses":["depth"],"mistakes":["missed edge case"]}}`)
	}))
	defer srv.Close()

	resp, err := New(srv.URL).EndInterview(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, resp.Feedback)
	assert.Equal(t, 7.5, resp.Feedback.OverallScore)
	assert.Equal(t, []string{"missed edge case"}, resp.Feedback.Mistakes)
}

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/interviews/history", r.URL.Path)
		io.WriteString(w, `[{"date":"2024-01-01","score":5},{"date":"2024-01-08","score":6.5}]`)
	}))
	defer srv.Close()

	points, err := New(srv.URL).FetchHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []HistoryPoint{{"2024-01-01", 5}, {"2024-01-08", 6.5}}, points)
}

func TestFetchHistoryNull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `null`)
	}))
	defer srv.Close()

	points, err := New(srv.URL).FetchHistory(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "interview not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).EndInterview(context.Background(), "missing")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "end", httpErr.Op)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "interview not found", httpErr.Body)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("面", 300), http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).EndInterview(context.Background(), "x")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, utf8.ValidString(httpErr.Body))
	assert.True(t, strings.HasSuffix(httpErr.Body, "..."))
	assert.LessOrEqual(t, runewidth.StringWidth(httpErr.Body), maxErrorBody)
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"history":"nope"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).SubmitChatTurn(context.Background(), "1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestInterviewIDUnmarshal(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want InterviewID
		err  bool
	}{
		{`"abc"`, "abc", false},
		{`17`, "17", false},
		{`null`, "", false},
		{`true`, "", true},
	} {
		t.Run(tt.in, func(t *testing.T) {
			var id InterviewID
			err := json.Unmarshal([]byte(tt.in), &id)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
