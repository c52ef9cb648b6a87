package session

import "mockinterview/gateway"

// PendingID marks the single in-progress user utterance in a transcript.
const PendingID = "temp-user"

type Message struct {
	ID      string
	Role    string
	Content string
}

func (m Message) Pending() bool { return m.ID == PendingID }

// FilterHistory keeps only user and assistant turns, in order.
func FilterHistory(history []gateway.Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role != gateway.RoleUser && m.Role != gateway.RoleAssistant {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// withPending drops any existing placeholder and appends a fresh one.
func withPending(msgs []Message, text string) []Message {
	out := make([]Message, 0, len(msgs)+1)
	for _, m := range msgs {
		if !m.Pending() {
			out = append(out, m)
		}
	}
	return append(out, Message{ID: PendingID, Role: gateway.RoleUser, Content: text})
}

func firstAssistant(msgs []Message) (Message, bool) {
	for _, m := range msgs {
		if m.Role == gateway.RoleAssistant {
			return m, true
		}
	}
	return Message{}, false
}

func lastAssistant(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	last := msgs[len(msgs)-1]
	return last, last.Role == gateway.RoleAssistant
}
