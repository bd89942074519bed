package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
)

// Verbosity selects which prompt template the builder renders.
type Verbosity int

const (
	// Structured asks for an empathetic opening, three tips and a closing quote.
	Structured Verbosity = iota
	// Minimal is a single role line followed by the user's text.
	Minimal
)

func (v Verbosity) String() string {
	if v == Minimal {
		return "minimal"
	}
	return "structured"
}

// ParseVerbosity maps a configuration value to a Verbosity.
func ParseVerbosity(raw string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "structured":
		return Structured, nil
	case "minimal":
		return Minimal, nil
	default:
		return Structured, fmt.Errorf("unknown prompt verbosity %q", raw)
	}
}

// PromptBuilder composes persona framing and user text into one instruction.
type PromptBuilder struct {
	verbosity Verbosity
}

// NewPromptBuilder returns a builder rendering the given template.
func NewPromptBuilder(verbosity Verbosity) *PromptBuilder {
	return &PromptBuilder{verbosity: verbosity}
}

// Verbosity reports the template in use.
func (b *PromptBuilder) Verbosity() Verbosity {
	return b.verbosity
}

// Build renders the prompt. The same inputs always produce the same string and
// userText is embedded in full.
func (b *PromptBuilder) Build(p persona.Persona, userText string) string {
	if b.verbosity == Minimal {
		return fmt.Sprintf("%s\nRespond to: %s", roleFraming(p), userText)
	}

	return fmt.Sprintf(`
%s
Follow this structure in your response:

1. Start with a gentle and supportive reply (about 7 lines, empathetic and understanding).
2. Then provide exactly 3 short practical tips in bullet points.
3. End with a heartfelt encouragement based on the user's feeling and also give a quote according to feelings of user.

Keep language simple, caring, and maximum 15-25 lines in total.

User feeling/message: %s
`, roleFraming(p), userText)
}

func roleFraming(p persona.Persona) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.ID
	}
	return fmt.Sprintf("You are a %s for someone who's emotionally sensitive.", name)
}
