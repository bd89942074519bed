// Package turn runs one conversational turn: capture input, generate a
// persona-conditioned reply, translate it, tag the mood, optionally voice it,
// and append the pair to the session transcript.
package turn

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/emoaid/backend/internal/analysis/mood"
	"github.com/zhouzirui/emoaid/backend/internal/model/chat"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	"github.com/zhouzirui/emoaid/backend/internal/service/ai"
	chatsvc "github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
	"github.com/zhouzirui/emoaid/backend/internal/service/speech"
)

// State is a pipeline stage, reported to observers as the turn progresses.
type State string

const (
	Idle              State = "idle"
	InputCaptured     State = "input_captured"
	Generating        State = "generating"
	Translating       State = "translating"
	MoodTagging       State = "mood_tagging"
	SynthesizingVoice State = "synthesizing_voice"
	Appended          State = "appended"
)

// DefaultCallTimeout bounds each external call of a turn.
const DefaultCallTimeout = 60 * time.Second

const (
	WarningNoInput           = "Please type a message or record your voice."
	WarningMissingCredential = "❌ Groq API key not found. Please set it in secrets.toml or as an environment variable."
	WarningTranscription     = "⚠️ Could not transcribe voice."
)

var (
	ErrNoInput = errors.New("no input captured")
	// ErrMissingCredential is matched with errors.Is; the returned error is a
	// *generation.AuthError.
	ErrMissingCredential = generation.ErrMissingCredential
)

// Translator renders a reply in the session language. On failure it returns
// the inline error text together with the error.
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Request carries everything one turn needs.
type Request struct {
	TypedText      string
	Audio          []byte
	AudioFormat    string
	SampleRateHint int
	Persona        persona.Persona
	TargetLanguage string
	VoiceEnabled   bool
	// OnState is called synchronously on every transition.
	OnState func(State)
}

// Result describes a finished (or rejected) turn.
type Result struct {
	Input     chat.TurnInput  `json:"input"`
	Output    chat.TurnOutput `json:"output"`
	User      *chat.Message   `json:"user,omitempty"`
	Assistant *chat.Message   `json:"assistant,omitempty"`
	Warning   string          `json:"warning,omitempty"`
	States    []State         `json:"states"`
}

// Options wires the capabilities. Transcriber and Synthesizer may be nil.
type Options struct {
	Prompts     *ai.PromptBuilder
	Generator   generation.Client
	Transcriber speech.Transcriber
	Translator  Translator
	Synthesizer speech.Synthesizer
	CallTimeout time.Duration
}

// Pipeline is safe for concurrent use; per-session ordering is the caller's
// job (see chat.Service.WithTurn).
type Pipeline struct {
	prompts     *ai.PromptBuilder
	generator   generation.Client
	transcriber speech.Transcriber
	translator  Translator
	synthesizer speech.Synthesizer
	callTimeout time.Duration
}

// New validates opts and builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Generator == nil {
		return nil, errors.New("turn pipeline requires a generation client")
	}
	if opts.Translator == nil {
		return nil, errors.New("turn pipeline requires a translator")
	}
	if opts.Prompts == nil {
		opts.Prompts = ai.NewPromptBuilder(ai.Structured)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Pipeline{
		prompts:     opts.Prompts,
		generator:   opts.Generator,
		transcriber: opts.Transcriber,
		translator:  opts.Translator,
		synthesizer: opts.Synthesizer,
		callTimeout: opts.CallTimeout,
	}, nil
}

// Run executes one turn against transcript. Rejected turns (no input, missing
// credential) return an error and leave the transcript untouched; any turn that
// gets past input capture is appended even when a stage failed.
func (p *Pipeline) Run(ctx context.Context, req Request, transcript *chatsvc.Transcript) (*Result, error) {
	res := &Result{}
	advance := func(s State) {
		res.States = append(res.States, s)
		if req.OnState != nil {
			req.OnState(s)
		}
	}
	advance(Idle)

	input, transcribeErr := p.captureInput(ctx, req)
	if input.Text == "" {
		var authErr *generation.AuthError
		if errors.As(transcribeErr, &authErr) {
			res.Warning = WarningMissingCredential
			return res, transcribeErr
		}
		res.Warning = WarningNoInput
		if transcribeErr != nil || len(req.Audio) > 0 {
			res.Warning = WarningTranscription
		}
		return res, ErrNoInput
	}
	res.Input = input
	advance(InputCaptured)

	// 每轮都重新检查凭据，运行期间补上的 key 无需重启即可生效
	if checker, ok := p.generator.(generation.CredentialChecker); ok {
		if err := checker.CheckCredential(); err != nil {
			res.Warning = WarningMissingCredential
			return res, err
		}
	}

	advance(Generating)
	generated := p.generate(ctx, req.Persona, input.Text)

	advance(Translating)
	translated := p.translate(ctx, generated, req.TargetLanguage)

	advance(MoodTagging)
	tag := mood.Classify(input.Text)

	out := chat.TurnOutput{
		GeneratedText:  generated,
		TranslatedText: translated,
		Mood:           tag,
	}

	if req.VoiceEnabled && p.synthesizer != nil {
		advance(SynthesizingVoice)
		p.synthesize(ctx, req.TargetLanguage, &out)
	}
	res.Output = out

	user, assistant := transcript.AppendTurn(
		chat.Message{Content: input.Text},
		chat.Message{Content: translated, Mood: tag},
	)
	res.User, res.Assistant = &user, &assistant
	advance(Appended)

	return res, nil
}

// captureInput prefers a non-empty transcript over typed text.
func (p *Pipeline) captureInput(ctx context.Context, req Request) (chat.TurnInput, error) {
	var transcribeErr error
	if len(req.Audio) > 0 && p.transcriber != nil {
		callCtx, cancel := generation.WithTimeout(ctx, p.callTimeout)
		text, err := p.transcriber.Transcribe(callCtx, req.Audio, req.AudioFormat, req.SampleRateHint)
		cancel()
		if err != nil {
			log.Printf("[turn] transcription failed: %v", err)
			transcribeErr = err
		} else if text = strings.TrimSpace(text); text != "" {
			return chat.TurnInput{Text: text, Modality: chat.Transcribed}, nil
		}
	}

	if typed := strings.TrimSpace(req.TypedText); typed != "" {
		return chat.TurnInput{Text: typed, Modality: chat.Typed}, nil
	}
	return chat.TurnInput{}, transcribeErr
}

func (p *Pipeline) generate(ctx context.Context, who persona.Persona, text string) string {
	prompt := p.prompts.Build(who, text)

	callCtx, cancel := generation.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	reply, err := p.generator.Generate(callCtx, prompt)
	if err != nil {
		err = generation.Classify(callCtx, p.generator.Name(), err)
		log.Printf("[turn] generation via %s failed: %v", p.generator.Name(), err)
		return generation.Describe(err)
	}
	return reply
}

func (p *Pipeline) translate(ctx context.Context, text, target string) string {
	callCtx, cancel := generation.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	translated, err := p.translator.Translate(callCtx, text, target)
	if err != nil {
		log.Printf("[turn] translation to %q failed: %v", target, err)
	}
	return translated
}

func (p *Pipeline) synthesize(ctx context.Context, lang string, out *chat.TurnOutput) {
	callCtx, cancel := generation.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	audio, err := p.synthesizer.Synthesize(callCtx, out.TranslatedText, lang)
	if err != nil {
		log.Printf("[turn] speech synthesis failed: %v", err)
		out.AudioError = err.Error()
		return
	}
	out.Audio = audio
	out.AudioFormat = "mp3"
}
