package speech

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
)

const (
	DefaultGroqTranscriptionURL = "https://api.groq.com/openai/v1"
	DefaultWhisperModel         = "whisper-large-v3"
)

// Transcriber converts recorded audio into text. An empty transcript with a nil
// error means the audio held nothing usable.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string, sampleRateHint int) (string, error)
}

// RemoteConfig configures the hosted Whisper endpoint.
type RemoteConfig struct {
	BaseURL    string
	Model      string
	Key        generation.KeySource
	HTTPClient *http.Client
}

// RemoteTranscriber posts audio to an OpenAI-compatible transcription API.
type RemoteTranscriber struct {
	cfg RemoteConfig
}

func NewRemoteTranscriber(cfg RemoteConfig) *RemoteTranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultGroqTranscriptionURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultWhisperModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &RemoteTranscriber{cfg: cfg}
}

// Transcribe implements Transcriber.
func (t *RemoteTranscriber) Transcribe(ctx context.Context, audio []byte, format string, _ int) (string, error) {
	var key string
	if t.cfg.Key != nil {
		key, _ = t.cfg.Key.Lookup()
	}
	if key == "" {
		return "", &generation.AuthError{Backend: "transcription", Err: generation.ErrMissingCredential}
	}
	if len(audio) == 0 {
		return "", nil
	}

	return requestTranscription(ctx, "transcription", transcriptionClient(t.cfg.BaseURL, key, t.cfg.HTTPClient), t.cfg.Model, audio, audioExtension(format))
}

// transcriptionClient 每次调用都重新构建，以便读取最新的密钥
func transcriptionClient(baseURL, apiKey string, httpClient *http.Client) openaigo.Client {
	return openaigo.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
}

// requestTranscription uploads one clip. Any non-2xx answer yields an empty
// transcript; transport failures are classified like generation errors.
func requestTranscription(ctx context.Context, backend string, client openaigo.Client, model string, audio []byte, ext string) (string, error) {
	resp, err := client.Audio.Transcriptions.New(ctx, openaigo.AudioTranscriptionNewParams{
		File:           openaigo.File(bytes.NewReader(audio), "audio."+ext, audioContentType(ext)),
		Model:          openaigo.AudioModel(model),
		ResponseFormat: openaigo.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openaigo.Error
		if errors.As(err, &apiErr) {
			log.Printf("[speech] %s returned status %d: %s", backend, apiErr.StatusCode, strings.TrimSpace(apiErr.RawJSON()))
			return "", nil
		}
		return "", generation.Classify(ctx, backend, err)
	}
	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Text), nil
}

func audioExtension(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if i := strings.Index(f, ";"); i >= 0 {
		f = f[:i]
	}
	f = strings.TrimPrefix(f, "audio/")
	f = strings.TrimPrefix(f, ".")
	switch f {
	case "wav", "x-wav", "wave":
		return "wav"
	case "mpeg", "mp3":
		return "mp3"
	case "webm":
		return "webm"
	case "ogg", "opus":
		return "ogg"
	case "mp4", "m4a", "x-m4a":
		return "m4a"
	case "flac":
		return "flac"
	default:
		return "wav"
	}
}

func audioContentType(ext string) string {
	switch ext {
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	default:
		return "audio/" + ext
	}
}
