package ai

import (
	"strings"
	"testing"

	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
)

var therapist = persona.Persona{ID: persona.Therapist, Name: "Therapist"}

func TestBuildStructuredPrompt(t *testing.T) {
	b := NewPromptBuilder(Structured)
	got := b.Build(therapist, "I feel anxious about tomorrow")

	for _, want := range []string{
		"You are a Therapist for someone who's emotionally sensitive.",
		"exactly 3 short practical tips in bullet points",
		"give a quote",
		"User feeling/message: I feel anxious about tomorrow",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("structured prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildMinimalPrompt(t *testing.T) {
	b := NewPromptBuilder(Minimal)
	got := b.Build(persona.Persona{ID: persona.WiseElder, Name: "Wise Elder"}, "hello")
	want := "You are a Wise Elder for someone who's emotionally sensitive.\nRespond to: hello"
	if got != want {
		t.Fatalf("unexpected minimal prompt:\n%q\nwant\n%q", got, want)
	}
}

func TestBuildIsDeterministicAndDoesNotTruncate(t *testing.T) {
	long := strings.Repeat("I keep thinking about it. ", 2000)
	b := NewPromptBuilder(Structured)

	first := b.Build(therapist, long)
	second := b.Build(therapist, long)
	if first != second {
		t.Fatal("prompt must be deterministic")
	}
	if !strings.Contains(first, long) {
		t.Fatal("user text must be embedded in full")
	}
}

func TestParseVerbosity(t *testing.T) {
	if v, err := ParseVerbosity(""); err != nil || v != Structured {
		t.Fatalf("empty should default to structured, got %v %v", v, err)
	}
	if v, err := ParseVerbosity("Minimal"); err != nil || v != Minimal {
		t.Fatalf("expected minimal, got %v %v", v, err)
	}
	if _, err := ParseVerbosity("chatty"); err == nil {
		t.Fatal("expected error for unknown verbosity")
	}
}
