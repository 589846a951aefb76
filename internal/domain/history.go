package domain

// ChatHistory is the ordered transcript of one conversation session.
type ChatHistory struct {
	SessionID string
	Messages  []*ChatMessage
}

// Len returns the number of messages in the transcript.
func (h *ChatHistory) Len() int {
	return len(h.Messages)
}

// Last returns the most recent message, or nil for an empty transcript.
func (h *ChatHistory) Last() *ChatMessage {
	if len(h.Messages) == 0 {
		return nil
	}
	return h.Messages[len(h.Messages)-1]
}

// ByRole returns the messages with the given role, preserving order.
func (h *ChatHistory) ByRole(role string) []*ChatMessage {
	var out []*ChatMessage
	for _, m := range h.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}
