// Package app assembles the services from configuration. Both the API server
// and the command line tools build on it.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/zhouzirui/emoaid/backend/internal/config"
	"github.com/zhouzirui/emoaid/backend/internal/model/persona"
	"github.com/zhouzirui/emoaid/backend/internal/service/ai"
	"github.com/zhouzirui/emoaid/backend/internal/service/chat"
	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
	einogen "github.com/zhouzirui/emoaid/backend/internal/service/generation/eino"
	openaigen "github.com/zhouzirui/emoaid/backend/internal/service/generation/openai"
	"github.com/zhouzirui/emoaid/backend/internal/service/letter"
	"github.com/zhouzirui/emoaid/backend/internal/service/speech"
	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
	"github.com/zhouzirui/emoaid/backend/internal/service/turn"
)

// App holds the wired services.
type App struct {
	Config      *config.Config
	Personas    persona.Store
	Chat        *chat.Service
	Generator   generation.Client
	Transcriber speech.Transcriber
	Translator  *translation.Service
	Synthesizer speech.Synthesizer
	Pipeline    *turn.Pipeline
	Turns       *turn.SessionRunner
	Letters     *letter.Service
}

// New 根据配置初始化全部服务
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	generator, err := NewGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[app] generation backend: %s", generator.Name())

	if cfg.Credentials != nil && (cfg.Generation.Backend == config.BackendGroq || cfg.Transcription.Backend == config.BackendGroq) {
		if source := cfg.Credentials.Source(); source != "" {
			log.Printf("[app] API key loaded from %s", source)
		} else {
			cfg.Credentials.WarnIfMissing()
		}
	}

	transcriber := NewTranscriber(cfg)
	if transcriber == nil {
		log.Println("[app] 语音识别已关闭，语音输入将被忽略")
	}

	var synthesizer speech.Synthesizer
	if cfg.Speech.Enabled {
		synthesizer = speech.NewGoogleSynthesizer(speech.GoogleSynthesizerConfig{BaseURL: cfg.Speech.BaseURL})
	} else {
		log.Println("[app] 语音合成已关闭")
	}

	translator := translation.NewService(
		translation.NewGoogleProvider(cfg.Translation.BaseURL, nil),
		cfg.Translation.DefaultLanguage,
	)

	prompts := ai.NewPromptBuilder(cfg.Generation.Verbosity)
	log.Printf("[app] prompt template: %s", prompts.Verbosity())

	pipeline, err := turn.New(turn.Options{
		Prompts:     prompts,
		Generator:   generator,
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synthesizer,
		CallTimeout: cfg.Turn.CallTimeout,
	})
	if err != nil {
		return nil, err
	}

	personas := persona.NewMemoryStore(persona.Seed())
	chatSvc := chat.NewService()

	return &App{
		Config:      cfg,
		Personas:    personas,
		Chat:        chatSvc,
		Generator:   generator,
		Transcriber: transcriber,
		Translator:  translator,
		Synthesizer: synthesizer,
		Pipeline:    pipeline,
		Turns:       turn.NewSessionRunner(pipeline, chatSvc, personas),
		Letters:     letter.NewService(generator, cfg.Turn.CallTimeout),
	}, nil
}

// NewGenerator 按 GENERATION_BACKEND 选择生成后端
func NewGenerator(ctx context.Context, cfg *config.Config) (generation.Client, error) {
	switch cfg.Generation.Backend {
	case config.BackendLocal:
		return openaigen.NewLocal(cfg.Generation.LocalBaseURL, cfg.Generation.LocalModel), nil
	case config.BackendArk:
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("init ark chat model: %w", err)
		}
		return einogen.New(ctx, config.BackendArk, chatModel)
	default:
		var key generation.KeySource
		if cfg.Credentials != nil {
			key = cfg.Credentials
		}
		return openaigen.New(openaigen.Config{
			Name:       config.BackendGroq,
			BaseURL:    cfg.Generation.GroqBaseURL,
			Model:      cfg.Generation.GroqModel,
			Key:        key,
			MaxRetries: cfg.Generation.MaxRetries,
		}), nil
	}
}

// NewTranscriber 按 TRANSCRIPTION_BACKEND 选择语音识别后端，关闭时返回 nil
func NewTranscriber(cfg *config.Config) speech.Transcriber {
	switch cfg.Transcription.Backend {
	case config.BackendOff:
		return nil
	case config.BackendLocal:
		return speech.NewLocalTranscriber(speech.LocalConfig{
			BaseURL:          cfg.Transcription.LocalBaseURL,
			Model:            cfg.Transcription.LocalModel,
			SilenceThreshold: cfg.Transcription.SilenceThreshold,
		})
	default:
		var key generation.KeySource
		if cfg.Credentials != nil {
			key = cfg.Credentials
		}
		return speech.NewRemoteTranscriber(speech.RemoteConfig{
			BaseURL: cfg.Transcription.BaseURL,
			Model:   cfg.Transcription.Model,
			Key:     key,
		})
	}
}
