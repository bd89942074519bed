package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/emoaid/backend/internal/analysis/mood"
	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	chatsvc "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	key     string
	prompts []string
	delay   time.Duration
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) CheckCredential() error {
	if f.key == "" {
		return &generation.AuthError{Backend: "fake", Err: generation.ErrMissingCredential}
	}
	return nil
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string, int) (string, error) {
	return f.text, f.err
}

type fakeProvider struct {
	reply string
	err   error
	calls int
}

func (f *fakeProvider) Translate(_ context.Context, text, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSynth struct {
	err  error
	lang string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	f.lang = lang
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text), nil
}

func therapist(t *testing.T) persona.Persona {
	t.Helper()
	p, ok := persona.NewMemoryStore(persona.Seed()).FindByID(persona.Therapist)
	if !ok {
		t.Fatal("therapist persona missing from seed")
	}
	return p
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	if opts.Translator == nil {
		opts.Translator = translation.NewService(&fakeProvider{reply: "unused"}, "English")
	}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return p
}

func TestRunTypedTurnInDefaultLanguage(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "Breathe slowly with me."}
	provider := &fakeProvider{reply: "should not be used"}
	p := newPipeline(t, Options{Generator: gen, Translator: translation.NewService(provider, "en")})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{
		TypedText:      "I'm so anxious about tomorrow",
		Persona:        therapist(t),
		TargetLanguage: "English",
	}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if res.Output.Mood != mood.Anxiety {
		t.Fatalf("expected anxiety, got %s", res.Output.Mood)
	}
	if res.Output.TranslatedText != "Breathe slowly with me." || provider.calls != 0 {
		t.Fatalf("default language must pass text through, got %q (calls=%d)", res.Output.TranslatedText, provider.calls)
	}
	if !strings.Contains(gen.prompts[0], "You are a Therapist for someone who's emotionally sensitive.") ||
		!strings.Contains(gen.prompts[0], "User feeling/message: I'm so anxious about tomorrow") {
		t.Fatalf("unexpected prompt: %q", gen.prompts[0])
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Sender != chat.User || entries[0].Content != "I'm so anxious about tomorrow" {
		t.Fatalf("unexpected user entry: %+v", entries[0])
	}
	if got := entries[1].Rendered(); got != "Breathe slowly with me. \n\n💬 *Mood: anxiety*" {
		t.Fatalf("unexpected assistant entry: %q", got)
	}

	want := []State{Idle, InputCaptured, Generating, Translating, MoodTagging, Appended}
	if len(res.States) != len(want) {
		t.Fatalf("unexpected states %v", res.States)
	}
	for i := range want {
		if res.States[i] != want[i] {
			t.Fatalf("state %d = %s, want %s", i, res.States[i], want[i])
		}
	}
}

func TestRunMissingCredentialLeavesTranscript(t *testing.T) {
	gen := &fakeGenerator{reply: "never"}
	p := newPipeline(t, Options{Generator: gen})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "hello", Persona: therapist(t)}, tr)
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	var authErr *generation.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T", err)
	}
	if res.Warning == "" {
		t.Fatal("expected a warning")
	}
	if tr.Len() != 0 || len(gen.prompts) != 0 {
		t.Fatalf("transcript or backend touched: len=%d calls=%d", tr.Len(), len(gen.prompts))
	}
}

func TestRunNoInput(t *testing.T) {
	p := newPipeline(t, Options{Generator: &fakeGenerator{key: "k"}})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "   "}, tr)
	if !errors.Is(err, ErrNoInput) {
		t.Fatalf("expected ErrNoInput, got %v", err)
	}
	if res.Warning != WarningNoInput || tr.Len() != 0 {
		t.Fatalf("unexpected result: %+v (len=%d)", res, tr.Len())
	}
}

func TestRunBackendFailureAppendsInlineError(t *testing.T) {
	gen := &fakeGenerator{key: "k", err: &generation.BackendError{Backend: "groq", StatusCode: 500, Body: `{"error":"internal"}`}}
	p := newPipeline(t, Options{Generator: gen})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "I feel alone", Persona: therapist(t), TargetLanguage: "en"}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected exactly one pair, got %d entries", len(entries))
	}
	if entries[1].Content != `❌ Chat error: {"error":"internal"}` {
		t.Fatalf("unexpected assistant content %q", entries[1].Content)
	}
	if res.Output.Mood != mood.Loneliness {
		t.Fatalf("expected loneliness, got %s", res.Output.Mood)
	}
}

func TestRunTimeoutIsReported(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "late", delay: time.Second}
	p := newPipeline(t, Options{Generator: gen, CallTimeout: 20 * time.Millisecond})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "hello", Persona: therapist(t)}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !strings.HasPrefix(res.Output.GeneratedText, "❌ Chat error:") || tr.Len() != 2 {
		t.Fatalf("timeout not surfaced inline: %q (len=%d)", res.Output.GeneratedText, tr.Len())
	}
}

func TestRunMoodUsesOriginalTextWhenTranslating(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "You are not alone, I hear you."}
	provider := &fakeProvider{reply: "Tu n'es pas seul."}
	p := newPipeline(t, Options{Generator: gen, Translator: translation.NewService(provider, "en")})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "I am so angry right now", Persona: therapist(t), TargetLanguage: "fr"}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Output.Mood != mood.Anger {
		t.Fatalf("mood must come from the user's text, got %s", res.Output.Mood)
	}
	if res.Output.TranslatedText != "Tu n'es pas seul." || res.Output.GeneratedText != "You are not alone, I hear you." {
		t.Fatalf("unexpected output %+v", res.Output)
	}
}

func TestRunTranslationFailureIsInline(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "hello"}
	provider := &fakeProvider{err: errors.New("blocked")}
	p := newPipeline(t, Options{Generator: gen, Translator: translation.NewService(provider, "en")})
	tr := chatsvc.NewTranscript("s")

	if _, err := p.Run(context.Background(), Request{TypedText: "hi", Persona: therapist(t), TargetLanguage: "German"}, tr); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := tr.Entries()[1].Content; got != "Translation error: blocked" {
		t.Fatalf("unexpected assistant content %q", got)
	}
}

func TestRunVoiceOverridesTypedText(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "ok"}
	p := newPipeline(t, Options{Generator: gen, Transcriber: &fakeTranscriber{text: "I feel so lonely"}})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "typed text", Audio: []byte("wav"), Persona: therapist(t)}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Input.Modality != chat.Transcribed || res.Input.Text != "I feel so lonely" {
		t.Fatalf("unexpected input %+v", res.Input)
	}
	if res.Output.Mood != mood.Loneliness {
		t.Fatalf("expected loneliness, got %s", res.Output.Mood)
	}
}

func TestRunEmptyTranscriptFallsBackToTyped(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "ok"}
	p := newPipeline(t, Options{Generator: gen, Transcriber: &fakeTranscriber{}})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "typed text", Audio: []byte("wav"), Persona: therapist(t)}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Input.Modality != chat.Typed || res.Input.Text != "typed text" {
		t.Fatalf("unexpected input %+v", res.Input)
	}

	res, err = p.Run(context.Background(), Request{Audio: []byte("wav"), Persona: therapist(t)}, tr)
	if !errors.Is(err, ErrNoInput) || res.Warning != WarningTranscription {
		t.Fatalf("expected transcription warning, got %v / %q", err, res.Warning)
	}
}

func TestRunVoiceSynthesis(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "hola"}
	synth := &fakeSynth{}
	p := newPipeline(t, Options{Generator: gen, Synthesizer: synth})
	tr := chatsvc.NewTranscript("s")

	res, err := p.Run(context.Background(), Request{TypedText: "hi", Persona: therapist(t), TargetLanguage: "en", VoiceEnabled: true}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if string(res.Output.Audio) != "mp3:hola" || res.Output.AudioFormat != "mp3" || synth.lang != "en" {
		t.Fatalf("unexpected audio output %+v", res.Output)
	}

	synth.err = errors.New("tts down")
	res, err = p.Run(context.Background(), Request{TypedText: "hi", Persona: therapist(t), TargetLanguage: "en", VoiceEnabled: true}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Output.Audio != nil || res.Output.AudioError == "" {
		t.Fatalf("expected empty audio with error, got %+v", res.Output)
	}
	if tr.Len() != 4 {
		t.Fatalf("synthesis failure must still append, len=%d", tr.Len())
	}
}

func TestRunOnStateObserver(t *testing.T) {
	gen := &fakeGenerator{key: "k", reply: "ok"}
	p := newPipeline(t, Options{Generator: gen, Synthesizer: &fakeSynth{}})
	tr := chatsvc.NewTranscript("s")

	var seen []State
	_, err := p.Run(context.Background(), Request{
		TypedText:    "hi",
		Persona:      therapist(t),
		VoiceEnabled: true,
		OnState:      func(s State) { seen = append(seen, s) },
	}, tr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(seen) != 7 || seen[5] != SynthesizingVoice || seen[6] != Appended {
		t.Fatalf("unexpected observed states %v", seen)
	}
}

func TestNewRequiresCapabilities(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without generator")
	}
	if _, err := New(Options{Generator: &fakeGenerator{}}); err == nil {
		t.Fatal("expected error without translator")
	}
}
