package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
)

// Transcript is the ordered history of one session. Entries are only ever
// appended in (user, assistant) pairs.
type Transcript struct {
	mu        sync.RWMutex
	sessionID string
	entries   []chat.Message
}

// NewTranscript creates an empty transcript for sessionID.
func NewTranscript(sessionID string) *Transcript {
	return &Transcript{sessionID: sessionID, entries: make([]chat.Message, 0, 16)}
}

// AppendTurn stores both halves of a turn under a single lock so readers never
// observe a user entry without its reply.
func (t *Transcript) AppendTurn(user, assistant chat.Message) (chat.Message, chat.Message) {
	now := time.Now().UTC()
	user = t.stamp(user, chat.User, now)
	assistant = t.stamp(assistant, chat.Assistant, now)

	t.mu.Lock()
	t.entries = append(t.entries, user, assistant)
	t.mu.Unlock()

	return user, assistant
}

func (t *Transcript) stamp(m chat.Message, sender chat.Speaker, now time.Time) chat.Message {
	m.ID = uuid.NewString()
	m.SessionID = t.sessionID
	m.Sender = sender
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return m
}

// Entries returns a copy in chronological order.
func (t *Transcript) Entries() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	copied := make([]chat.Message, len(t.entries))
	copy(copied, t.entries)
	return copied
}

// Recent returns a copy with the newest entry first.
func (t *Transcript) Recent() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]chat.Message, len(t.entries))
	for i, m := range t.entries {
		out[len(t.entries)-1-i] = m
	}
	return out
}

// Len reports the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
