package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	model "github.com/zhouzirui/emoaid/backend/internal/model/chat"
	chat "github.com/zhouzirui/emoaid/backend/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, chat.Options{PersonaID: "therapist", Language: "French", VoiceEnabled: true})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.PersonaID != "therapist" || got.Language != "fr" || !got.VoiceEnabled {
		t.Fatalf("unexpected session settings: %+v", got)
	}
}

func TestServiceCreateSessionDefaults(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, chat.Options{}); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}

	session, err := svc.CreateSession(ctx, chat.Options{PersonaID: "motivator"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if session.Language != "en" || session.VoiceEnabled {
		t.Fatalf("unexpected defaults: %+v", session)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestServiceUpdateSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, chat.Options{PersonaID: "therapist"})

	persona := "stoic-philosopher"
	voice := true
	lang := "Japanese"
	updated, err := svc.UpdateSession(ctx, session.ID, chat.Update{PersonaID: &persona, VoiceEnabled: &voice, Language: &lang})
	if err != nil {
		t.Fatalf("UpdateSession err: %v", err)
	}
	if updated.PersonaID != persona || !updated.VoiceEnabled || updated.Language != "ja" {
		t.Fatalf("unexpected session after update: %+v", updated)
	}

	empty := " "
	if _, err := svc.UpdateSession(ctx, session.ID, chat.Update{PersonaID: &empty}); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, err := svc.UpdateSession(ctx, "missing", chat.Update{}); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceEndSessionDiscardsTranscript(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, chat.Options{PersonaID: "therapist"})

	err := svc.WithTurn(ctx, session.ID, func(_ model.Session, tr *chat.Transcript) error {
		tr.AppendTurn(model.Message{Content: "hi"}, model.Message{Content: "hello"})
		return nil
	})
	if err != nil {
		t.Fatalf("WithTurn err: %v", err)
	}

	if err := svc.EndSession(ctx, session.ID); err != nil {
		t.Fatalf("EndSession err: %v", err)
	}
	if _, err := svc.LoadTranscript(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after end, got %v", err)
	}
	if err := svc.EndSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second end, got %v", err)
	}
}

func TestServiceWithTurnSerializes(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, chat.Options{PersonaID: "therapist"})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.WithTurn(ctx, session.ID, func(_ model.Session, tr *chat.Transcript) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)
				tr.AppendTurn(model.Message{Content: "q"}, model.Message{Content: "a"})

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("turns overlapped: %d concurrent", maxSeen)
	}
	messages, _ := svc.LoadTranscript(ctx, session.ID)
	if len(messages) != 16 {
		t.Fatalf("expected 16 entries, got %d", len(messages))
	}
	for i := 0; i < len(messages); i += 2 {
		if messages[i].Sender != model.User || messages[i+1].Sender != model.Assistant {
			t.Fatalf("entries %d/%d are not a user/assistant pair", i, i+1)
		}
	}
}

func TestServiceWithTurnHonoursContext(t *testing.T) {
	svc := chat.NewService()
	session, _ := svc.CreateSession(context.Background(), chat.Options{PersonaID: "therapist"})

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = svc.WithTurn(context.Background(), session.ID, func(model.Session, *chat.Transcript) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := svc.WithTurn(ctx, session.ID, func(model.Session, *chat.Transcript) error {
		t.Error("second turn must not run while the first holds the slot")
		return nil
	})
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
