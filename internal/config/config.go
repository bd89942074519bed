package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/emoaid/backend/internal/service/ai"
)

// 生成后端
const (
	BackendGroq  = "groq"
	BackendLocal = "local"
	BackendArk   = "ark"
	// BackendOff disables transcription; voice input is then ignored.
	BackendOff = "off"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server        ServerConfig
	Generation    GenerationConfig
	Ark           ArkConfig
	Transcription TranscriptionConfig
	Translation   TranslationConfig
	Speech        SpeechConfig
	Turn          TurnConfig
	Credentials   *Credentials
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	generation, err := loadGenerationConfig()
	if err != nil {
		return nil, err
	}

	arkCfg, err := loadArkConfig()
	if err != nil {
		return nil, err
	}

	transcription, err := loadTranscriptionConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	turn, err := loadTurnConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:        server,
		Generation:    generation,
		Ark:           arkCfg,
		Transcription: transcription,
		Translation: TranslationConfig{
			BaseURL:         strings.TrimSpace(os.Getenv("TRANSLATE_BASE_URL")),
			DefaultLanguage: getEnvOrDefault("DEFAULT_LANGUAGE", "English"),
		},
		Speech:      speech,
		Turn:        turn,
		Credentials: NewCredentials(getEnvOrDefault("SECRETS_FILE", "secrets.toml"), "GROQ_API_KEY"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// GenerationConfig 选择并描述对话生成后端。
type GenerationConfig struct {
	Backend      string
	GroqBaseURL  string
	GroqModel    string
	LocalBaseURL string
	LocalModel   string
	MaxRetries   int
	Verbosity    ai.Verbosity
}

func loadGenerationConfig() (GenerationConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("GENERATION_BACKEND", BackendGroq))
	switch backend {
	case BackendGroq, BackendLocal, BackendArk:
	default:
		return GenerationConfig{}, fmt.Errorf("invalid GENERATION_BACKEND value: %q", backend)
	}

	verbosity, err := ai.ParseVerbosity(os.Getenv("PROMPT_VERBOSITY"))
	if err != nil {
		return GenerationConfig{}, err
	}

	// 默认不重试，失败直接展示给用户
	retries := 0
	if override, err := parseOptionalIntEnv("GENERATION_MAX_RETRIES"); err != nil {
		return GenerationConfig{}, err
	} else if override != nil && *override > 0 {
		retries = *override
	}

	return GenerationConfig{
		Backend:      backend,
		GroqBaseURL:  strings.TrimSpace(os.Getenv("GROQ_BASE_URL")),
		GroqModel:    strings.TrimSpace(os.Getenv("GROQ_MODEL")),
		LocalBaseURL: strings.TrimSpace(os.Getenv("LOCAL_LLM_BASE_URL")),
		LocalModel:   strings.TrimSpace(os.Getenv("LOCAL_LLM_MODEL")),
		MaxRetries:   retries,
		Verbosity:    verbosity,
	}, nil
}

// ArkConfig 描述火山方舟大模型配置（GENERATION_BACKEND=ark）。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadArkConfig() (ArkConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// TranscriptionConfig 描述语音识别配置。
type TranscriptionConfig struct {
	Backend          string
	BaseURL          string
	Model            string
	LocalBaseURL     string
	LocalModel       string
	SilenceThreshold float64
}

func loadTranscriptionConfig() (TranscriptionConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("TRANSCRIPTION_BACKEND", BackendGroq))
	switch backend {
	case BackendGroq, BackendLocal, BackendOff:
	default:
		return TranscriptionConfig{}, fmt.Errorf("invalid TRANSCRIPTION_BACKEND value: %q", backend)
	}

	threshold, err := parseOptionalFloatEnv("SILENCE_RMS_THRESHOLD")
	if err != nil {
		return TranscriptionConfig{}, err
	}
	silence := 0.0
	if threshold != nil {
		silence = *threshold
	}

	return TranscriptionConfig{
		Backend:          backend,
		BaseURL:          strings.TrimSpace(os.Getenv("GROQ_BASE_URL")),
		Model:            strings.TrimSpace(os.Getenv("WHISPER_MODEL")),
		LocalBaseURL:     getEnvOrDefault("LOCAL_WHISPER_BASE_URL", strings.TrimSpace(os.Getenv("LOCAL_WHISPER_ENDPOINT"))),
		LocalModel:       strings.TrimSpace(os.Getenv("LOCAL_WHISPER_MODEL")),
		SilenceThreshold: silence,
	}, nil
}

// TranslationConfig 描述翻译服务配置。
type TranslationConfig struct {
	BaseURL         string
	DefaultLanguage string
}

// SpeechConfig 描述语音合成配置。
type SpeechConfig struct {
	Enabled bool
	BaseURL string
}

func loadSpeechConfig() (SpeechConfig, error) {
	enabled, err := parseBoolEnv("TTS_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}
	return SpeechConfig{
		Enabled: enabled,
		BaseURL: strings.TrimSpace(os.Getenv("TTS_BASE_URL")),
	}, nil
}

// TurnConfig 描述单轮对话的执行参数。
type TurnConfig struct {
	CallTimeout time.Duration
}

func loadTurnConfig() (TurnConfig, error) {
	timeout, err := parseDurationEnv("TURN_CALL_TIMEOUT", 60*time.Second)
	if err != nil {
		return TurnConfig{}, err
	}
	return TurnConfig{CallTimeout: timeout}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

// parseDurationEnv 接受 "45s" 这类时长，也接受纯数字秒数。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
