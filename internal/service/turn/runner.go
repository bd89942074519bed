package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatsvc "github.com/zhouzirui/emoaid/backend/internal/service/chat"
)

// ErrUnknownPersona is returned when a session references a persona that is
// not in the catalogue.
var ErrUnknownPersona = errors.New("unknown persona")

// Input is what a client submits for one turn.
type Input struct {
	Text           string
	Audio          []byte
	AudioFormat    string
	SampleRateHint int
	OnState        func(State)
}

// SessionRunner binds the pipeline to stored sessions so every surface (HTTP,
// SSE, websocket, CLI) runs turns the same way.
type SessionRunner struct {
	pipeline *Pipeline
	sessions *chatsvc.Service
	personas persona.Store
}

func NewSessionRunner(pipeline *Pipeline, sessions *chatsvc.Service, personas persona.Store) *SessionRunner {
	return &SessionRunner{pipeline: pipeline, sessions: sessions, personas: personas}
}

// Run executes a turn with the session's current persona, language and voice
// settings. Turns on the same session run one at a time.
func (r *SessionRunner) Run(ctx context.Context, sessionID string, in Input) (*Result, error) {
	var (
		result *Result
		runErr error
	)
	err := r.sessions.WithTurn(ctx, sessionID, func(session chat.Session, transcript *chatsvc.Transcript) error {
		who, ok := r.personas.FindByID(session.PersonaID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPersona, session.PersonaID)
		}
		result, runErr = r.pipeline.Run(ctx, Request{
			TypedText:      in.Text,
			Audio:          in.Audio,
			AudioFormat:    in.AudioFormat,
			SampleRateHint: in.SampleRateHint,
			Persona:        who,
			TargetLanguage: session.Language,
			VoiceEnabled:   session.VoiceEnabled,
			OnState:        in.OnState,
		}, transcript)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, runErr
}
