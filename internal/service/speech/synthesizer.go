package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/emoaid/backend/internal/service/translation"
)

const (
	DefaultGoogleTTSURL = "https://translate.google.com/translate_tts"
	// Google rejects longer q parameters
	maxTTSChunkRunes = 100
)

var (
	ErrEmptySpeechText     = errors.New("nothing to synthesize")
	ErrUnsupportedLanguage = errors.New("language not supported for speech")
)

// Synthesizer turns text into MP3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// GoogleSynthesizerConfig configures the Google Translate TTS endpoint.
type GoogleSynthesizerConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// GoogleSynthesizer 调用 Google Translate 的 TTS 接口，按词边界分段后拼接 MP3
type GoogleSynthesizer struct {
	baseURL string
	client  *http.Client
}

func NewGoogleSynthesizer(cfg GoogleSynthesizerConfig) *GoogleSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultGoogleTTSURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleSynthesizer{baseURL: cfg.BaseURL, client: cfg.HTTPClient}
}

// Synthesize implements Synthesizer.
func (s *GoogleSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySpeechText
	}
	code, ok := translation.ResolveLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	chunks := splitSpeechText(text, maxTTSChunkRunes)
	var audio bytes.Buffer
	for idx, chunk := range chunks {
		segment, err := s.fetch(ctx, chunk, code, idx, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("synthesize chunk %d/%d: %w", idx+1, len(chunks), err)
		}
		audio.Write(segment)
	}
	return audio.Bytes(), nil
}

func (s *GoogleSynthesizer) fetch(ctx context.Context, chunk, lang string, idx, total int) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", lang)
	query.Set("q", chunk)
	query.Set("total", strconv.Itoa(total))
	query.Set("idx", strconv.Itoa(idx))
	query.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return io.ReadAll(resp.Body)
}

// splitSpeechText packs words into chunks of at most limit runes. Words longer
// than limit are cut.
func splitSpeechText(text string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
	)
	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		n := len(runes)
		if n == 0 {
			continue
		}
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(string(runes))
		size += n
	}
	flush()
	return chunks
}

// DataURI encodes MP3 audio for an embeddable player.
func DataURI(audio []byte) string {
	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio)
}
