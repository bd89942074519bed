package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// Options are the per-session settings chosen when a conversation starts.
type Options struct {
	PersonaID    string
	Language     string
	VoiceEnabled bool
}

// Update changes session settings; nil fields are left alone.
type Update struct {
	PersonaID    *string
	Language     *string
	VoiceEnabled *bool
}

type sessionEntry struct {
	session    chat.Session
	transcript *Transcript
	// turn 作为容量为 1 的信号量，保证同一会话的轮次串行执行
	turn chan struct{}
}

// Service encapsulates conversation state management.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewService bootstraps the in-memory chat service. Sessions live until
// EndSession or process exit.
func NewService() *Service {
	return &Service{sessions: make(map[string]*sessionEntry)}
}

// CreateSession provisions an anonymous session bound to a persona.
func (s *Service) CreateSession(_ context.Context, opts Options) (chat.Session, error) {
	if strings.TrimSpace(opts.PersonaID) == "" {
		return chat.Session{}, ErrPersonaRequired
	}

	session := chat.Session{
		ID:           uuid.NewString(),
		PersonaID:    opts.PersonaID,
		Language:     normalizeLanguage(opts.Language),
		VoiceEnabled: opts.VoiceEnabled,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionEntry{
		session:    session,
		transcript: NewTranscript(session.ID),
		turn:       make(chan struct{}, 1),
	}
	s.mu.Unlock()

	return session, nil
}

func normalizeLanguage(lang string) string {
	if code, ok := translation.ResolveLanguage(lang); ok {
		return code
	}
	return translation.DefaultLanguage
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entry.session, nil
}

// UpdateSession applies new settings. They take effect on the next turn.
func (s *Service) UpdateSession(_ context.Context, sessionID string, update Update) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	if update.PersonaID != nil {
		if strings.TrimSpace(*update.PersonaID) == "" {
			return chat.Session{}, ErrPersonaRequired
		}
		entry.session.PersonaID = *update.PersonaID
	}
	if update.Language != nil {
		entry.session.Language = normalizeLanguage(*update.Language)
	}
	if update.VoiceEnabled != nil {
		entry.session.VoiceEnabled = *update.VoiceEnabled
	}
	return entry.session, nil
}

// WithTurn runs fn while holding the session's turn slot. Concurrent turns on
// the same session wait; ctx cancellation abandons the wait.
func (s *Service) WithTurn(ctx context.Context, sessionID string, fn func(chat.Session, *Transcript) error) error {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	select {
	case entry.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.turn }()

	// 取得轮次后再读取设置，确保使用最新的人设与语言
	s.mu.RLock()
	session := entry.session
	s.mu.RUnlock()

	return fn(session, entry.transcript)
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.transcript.Entries(), nil
}

// Transcript exposes the live transcript of a session.
func (s *Service) Transcript(_ context.Context, sessionID string) (*Transcript, error) {
	entry, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return entry.transcript, nil
}

// EndSession discards the session and its transcript.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Service) lookup(sessionID string) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}
