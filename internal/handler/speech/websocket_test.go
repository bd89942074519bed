package speech

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/emoaid/backend/internal/analysis/mood"
	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
)

type recordingRunner struct {
	inputs chan turn.Input
}

func (r *recordingRunner) Run(_ context.Context, _ string, in turn.Input) (*turn.Result, error) {
	r.inputs <- in
	if strings.TrimSpace(in.Text) == "" && len(in.Audio) == 0 {
		return &turn.Result{Warning: turn.WarningNoInput}, turn.ErrNoInput
	}
	in.OnState(turn.Idle)
	in.OnState(turn.Appended)
	return &turn.Result{Output: chat.TurnOutput{TranslatedText: "reply", Mood: mood.Neutral}}, nil
}

func dialSession(t *testing.T) (*websocket.Conn, *recordingRunner, *chatservice.Service, string) {
	t.Helper()
	chatSvc := chatservice.NewService()
	session, err := chatSvc.CreateSession(context.Background(), chatservice.Options{PersonaID: persona.Therapist})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	runner := &recordingRunner{inputs: make(chan turn.Input, 4)}
	r := chi.NewRouter()
	r.Route("/session/{sessionID}", NewWebSocketHandler(runner, chatSvc, persona.NewMemoryStore(persona.Seed())).RegisterSessionRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/" + session.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if got := readType(t, conn); got.Type != "connected" {
		t.Fatalf("expected connected, got %s", got.Type)
	}
	return conn, runner, chatSvc, session.ID
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readType(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read err: %v", err)
	}
	return f
}

func TestWebSocketTextTurn(t *testing.T) {
	conn, runner, _, _ := dialSession(t)

	if err := conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]string{"text": "I feel sad"}}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	var types []string
	for len(types) < 3 {
		types = append(types, readType(t, conn).Type)
	}
	if strings.Join(types, ",") != "state,state,result" {
		t.Fatalf("unexpected frame sequence %v", types)
	}
	if in := <-runner.inputs; in.Text != "I feel sad" {
		t.Fatalf("unexpected runner input %+v", in)
	}
}

func TestWebSocketBuffersAudioUntilFinal(t *testing.T) {
	conn, runner, _, _ := dialSession(t)

	chunks := []map[string]any{
		{"audioData": []byte("RIFF"), "format": "wav", "sampleRate": 44100},
		{"audioData": []byte("-rest"), "isFinal": true},
	}
	for _, c := range chunks {
		if err := conn.WriteJSON(map[string]any{"type": "audio", "data": c}); err != nil {
			t.Fatalf("write err: %v", err)
		}
	}

	select {
	case in := <-runner.inputs:
		if string(in.Audio) != "RIFF-rest" || in.AudioFormat != "wav" || in.SampleRateHint != 44100 {
			t.Fatalf("unexpected buffered input %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("turn was not triggered by final chunk")
	}
}

func TestWebSocketConfigAndWarnings(t *testing.T) {
	conn, _, chatSvc, sessionID := dialSession(t)

	_ = conn.WriteJSON(map[string]any{"type": "config", "data": map[string]any{"personaId": "Romantic Poet", "language": "Italian", "voiceEnabled": true}})
	if f := readType(t, conn); f.Type != "config" {
		t.Fatalf("expected config ack, got %s", f.Type)
	}
	session, _ := chatSvc.GetSession(context.Background(), sessionID)
	if session.PersonaID != persona.RomanticPoet || session.Language != "it" || !session.VoiceEnabled {
		t.Fatalf("config not applied: %+v", session)
	}

	_ = conn.WriteJSON(map[string]any{"type": "turn", "data": map[string]string{"text": " "}})
	if f := readType(t, conn); f.Type != "warning" {
		t.Fatalf("expected warning, got %s", f.Type)
	}

	_ = conn.WriteJSON(map[string]any{"type": "dance"})
	if f := readType(t, conn); f.Type != "error" {
		t.Fatalf("expected error, got %s", f.Type)
	}
}
