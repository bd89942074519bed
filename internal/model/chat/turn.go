package chat

import "github.com/zhouzirui/emoaid/backend/internal/analysis/mood"

// Modality records how the user's text reached the pipeline.
type Modality string

const (
	Typed       Modality = "typed"
	Transcribed Modality = "transcribed"
)

// TurnInput is created once per user action.
type TurnInput struct {
	Text     string   `json:"text"`
	Modality Modality `json:"modality"`
}

// TurnOutput is what the assistant produced for one turn.
type TurnOutput struct {
	GeneratedText  string    `json:"generatedText"`
	TranslatedText string    `json:"translatedText"`
	Mood           mood.Mood `json:"mood"`
	Audio          []byte    `json:"-"`
	AudioFormat    string    `json:"audioFormat,omitempty"`
	AudioError     string    `json:"audioError,omitempty"`
}
