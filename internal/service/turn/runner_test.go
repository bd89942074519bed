package turn

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatsvc "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
)

func TestSessionRunnerUsesSessionSettings(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "Courage."}
	provider := &fakeProvider{reply: "Courage (fr)."}
	synth := &fakeSynth{}
	p := newPipeline(t, Options{Generator: gen, Synthesizer: synth, Translator: translation.NewService(provider, "en")})

	sessions := chatsvc.NewService()
	ctx := context.Background()
	session, err := sessions.CreateSession(ctx, chatsvc.Options{PersonaID: persona.ToughLoveCoach, Language: "French", VoiceEnabled: true})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	runner := NewSessionRunner(p, sessions, persona.NewMemoryStore(persona.Seed()))
	res, err := runner.Run(ctx, session.ID, Input{Text: "I'm worried"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.Contains(gen.prompts[0], "You are a Tough Love Coach") {
		t.Fatalf("persona not applied: %q", gen.prompts[0])
	}
	if res.Output.TranslatedText != "Courage (fr)." || synth.lang != "fr" {
		t.Fatalf("language not applied: %+v (tts %q)", res.Output, synth.lang)
	}

	messages, _ := sessions.LoadTranscript(ctx, session.ID)
	if len(messages) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(messages))
	}
}

func TestSessionRunnerErrors(t *testing.T) {
	p := newPipeline(t, Options{Generator: &fakeGenerator{key: "k", reply: "ok"}})
	sessions := chatsvc.NewService()
	runner := NewSessionRunner(p, sessions, persona.NewMemoryStore(persona.Seed()))
	ctx := context.Background()

	if _, err := runner.Run(ctx, "missing", Input{Text: "hi"}); !errors.Is(err, chatsvc.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	session, _ := sessions.CreateSession(ctx, chatsvc.Options{PersonaID: "ghost"})
	if _, err := runner.Run(ctx, session.ID, Input{Text: "hi"}); !errors.Is(err, ErrUnknownPersona) {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}
}
