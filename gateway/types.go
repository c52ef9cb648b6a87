package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// InterviewID is the opaque identifier the backend assigns to a session.
// Backends emit it either as a JSON string or as a number.
type InterviewID string

func (id *InterviewID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = InterviewID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("interview id: %w", err)
	}
	*id = InterviewID(n.String())
	return nil
}

func (id InterviewID) String() string { return string(id) }

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Feedback struct {
	TechnicalScore     float64  `json:"technicalScore"`
	CommunicationScore float64  `json:"communicationScore"`
	OverallScore       float64  `json:"overallScore"`
	Summary            string   `json:"summary"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	Mistakes           []string `json:"mistakes"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

type StartRequest struct {
	Domain     string
	Difficulty string
	ResumePath string
}

type StartResponse struct {
	ID      InterviewID `json:"id"`
	History []Message   `json:"history"`
}

type ChatResponse struct {
	History []Message `json:"history"`
}

type EndResponse struct {
	Feedback *Feedback `json:"feedback"`
}

// HTTPError is returned for any non-2xx backend response.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Body)
}
