package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultLocalWhisperURL = "http://localhost:9000/v1"
	// DefaultSilenceThreshold is the RMS level below which a clip counts as silence.
	DefaultSilenceThreshold = 0.01

	// 本地服务不校验密钥，但 SDK 总会发送 Authorization 头
	localPlaceholderKey = "local"
)

// ErrUnsupportedAudio is returned when local transcription receives non-WAV input.
var ErrUnsupportedAudio = errors.New("local transcription requires WAV audio")

// LocalConfig configures a self-hosted Whisper-compatible server.
type LocalConfig struct {
	// BaseURL is the OpenAI-compatible API root, e.g. http://localhost:9000/v1.
	BaseURL          string
	Model            string
	SilenceThreshold float64
	HTTPClient       *http.Client
}

// LocalTranscriber normalizes audio to 16 kHz mono before posting it, since
// local models silently produce garbage for other rates.
type LocalTranscriber struct {
	cfg LocalConfig
}

func NewLocalTranscriber(cfg LocalConfig) *LocalTranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultLocalWhisperURL
	}
	// 兼容直接填写完整接口地址的配置
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"), "/audio/transcriptions")
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultWhisperModel
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &LocalTranscriber{cfg: cfg}
}

// Transcribe implements Transcriber. sampleRateHint is only used when the WAV
// header carries no rate.
func (t *LocalTranscriber) Transcribe(ctx context.Context, audio []byte, _ string, sampleRateHint int) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if !IsWAV(audio) {
		return "", ErrUnsupportedAudio
	}

	pcm, err := DecodeWAV(audio)
	if err != nil {
		return "", fmt.Errorf("decode wav: %w", err)
	}
	rate := pcm.SampleRate
	if rate <= 0 {
		rate = sampleRateHint
	}
	if rate <= 0 {
		return "", errors.New("wav sample rate unknown")
	}

	samples := pcm.Mono()
	if rate != TargetSampleRate {
		samples = Resample(samples, rate, TargetSampleRate)
	}

	if level := RMS(samples); level < t.cfg.SilenceThreshold {
		log.Printf("[speech] local transcription skipped, rms=%.4f below %.4f", level, t.cfg.SilenceThreshold)
		return "", nil
	}

	client := transcriptionClient(t.cfg.BaseURL, localPlaceholderKey, t.cfg.HTTPClient)
	return requestTranscription(ctx, "local-transcription", client, t.cfg.Model, EncodeWAV(samples, TargetSampleRate), "wav")
}
