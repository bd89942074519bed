package chat

import (
	"time"

	"github.com/zhouzirui/emoaid/backend/internal/analysis/mood"
)

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	User      Speaker = "user"
	Assistant Speaker = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Speaker   `json:"sender"`
	Content   string    `json:"content"`
	Mood      mood.Mood `json:"mood,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rendered returns the content as shown in the chat history, with the mood
// annotation appended to assistant replies.
func (m Message) Rendered() string {
	if m.Sender != Assistant || m.Mood == "" {
		return m.Content
	}
	return m.Content + " \n\n" + mood.Annotation(m.Mood)
}
