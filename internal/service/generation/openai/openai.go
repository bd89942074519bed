// Package openai implements generation.Client against OpenAI-compatible chat
// completion endpoints: the hosted Groq API and local servers such as Ollama.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
)

const (
	DefaultGroqBaseURL  = "https://api.groq.com/openai/v1"
	DefaultGroqModel    = "llama-3.3-70b-versatile"
	DefaultLocalBaseURL = "http://localhost:11434/v1"
	DefaultLocalModel   = "mistral"

	// local servers ignore the key but the SDK always sends the header
	localPlaceholderKey = "local"
)

// Config describes one chat-completion backend.
type Config struct {
	// Name labels the backend in logs and errors ("groq", "local").
	Name    string
	BaseURL string
	Model   string
	// Key is nil for backends that do not need a credential.
	Key        generation.KeySource
	MaxRetries int
	HTTPClient *http.Client
}

// Client calls the chat completions API with a single user message.
type Client struct {
	cfg Config
}

// New creates a client; empty fields fall back to the Groq defaults.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "groq"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultGroqBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultGroqModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &Client{cfg: cfg}
}

// NewLocal creates a client for an OpenAI-compatible server running next to the app.
func NewLocal(baseURL, model string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultLocalBaseURL
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultLocalModel
	}
	return New(Config{Name: "local", BaseURL: baseURL, Model: model})
}

// Name implements generation.Client.
func (c *Client) Name() string { return c.cfg.Name }

// CheckCredential implements generation.CredentialChecker.
func (c *Client) CheckCredential() error {
	if c.cfg.Key == nil {
		return nil
	}
	if _, ok := c.cfg.Key.Lookup(); !ok {
		return &generation.AuthError{Backend: c.cfg.Name, Err: generation.ErrMissingCredential}
	}
	return nil
}

// Generate implements generation.Client.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	apiKey := localPlaceholderKey
	if c.cfg.Key != nil {
		key, ok := c.cfg.Key.Lookup()
		if !ok {
			return "", &generation.AuthError{Backend: c.cfg.Name, Err: generation.ErrMissingCredential}
		}
		apiKey = key
	}

	client := openaigo.NewClient(
		option.WithBaseURL(c.cfg.BaseURL),
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(c.cfg.HTTPClient),
		option.WithMaxRetries(c.cfg.MaxRetries),
	)

	resp, err := client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(c.cfg.Model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", c.classify(ctx, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &generation.BackendError{Backend: c.cfg.Name, StatusCode: http.StatusOK, Body: "no choices returned"}
	}

	content := resp.Choices[0].Message.Content
	log.Printf("[generation] %s model=%s reply length=%d", c.cfg.Name, c.cfg.Model, len(content))
	return content, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var apiErr *openaigo.Error
	if !errors.As(err, &apiErr) {
		return generation.Classify(ctx, c.cfg.Name, err)
	}

	body := strings.TrimSpace(apiErr.RawJSON())
	if body == "" {
		body = apiErr.Error()
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &generation.AuthError{
			Backend: c.cfg.Name,
			Err:     fmt.Errorf("status %d: %s", apiErr.StatusCode, body),
		}
	default:
		return &generation.BackendError{Backend: c.cfg.Name, StatusCode: apiErr.StatusCode, Body: body}
	}
}
