package turn

import (
	"github.com/zhouzirui/emoaid/backend/internal/analysis/mood"
	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/speech"
)

// View is the client-facing shape of a turn result. Rendered is the assistant
// entry as the chat history shows it.
type View struct {
	Input          chat.TurnInput `json:"input"`
	Reply          string         `json:"reply"`
	GeneratedText  string         `json:"generatedText"`
	TranslatedText string         `json:"translatedText"`
	Mood           mood.Mood      `json:"mood"`
	Rendered       string         `json:"rendered"`
	AudioDataURI   string         `json:"audioDataUri,omitempty"`
	AudioError     string         `json:"audioError,omitempty"`
	User           *chat.Message  `json:"user,omitempty"`
	Assistant      *chat.Message  `json:"assistant,omitempty"`
	Warning        string         `json:"warning,omitempty"`
	States         []State        `json:"states"`
}

// View flattens the result for JSON responses.
func (r *Result) View() View {
	v := View{
		Input:          r.Input,
		Reply:          r.Output.TranslatedText,
		GeneratedText:  r.Output.GeneratedText,
		TranslatedText: r.Output.TranslatedText,
		Mood:           r.Output.Mood,
		AudioError:     r.Output.AudioError,
		User:           r.User,
		Assistant:      r.Assistant,
		Warning:        r.Warning,
		States:         r.States,
	}
	if r.Assistant != nil {
		v.Rendered = r.Assistant.Rendered()
	}
	if len(r.Output.Audio) > 0 {
		v.AudioDataURI = speech.DataURI(r.Output.Audio)
	}
	return v
}
