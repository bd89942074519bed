// Package eino adapts any eino chat model (Ark by default) to generation.Client.
package eino

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
)

// Client runs prompts through a compiled template -> chat model chain.
type Client struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// New compiles the chain around chatModel.
func New(ctx context.Context, name string, chatModel model.ChatModel) (*Client, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if name == "" {
		name = "ark"
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &Client{name: name, chain: runnable}, nil
}

// Name implements generation.Client.
func (c *Client) Name() string { return c.name }

// Generate implements generation.Client.
func (c *Client) Generate(ctx context.Context, userPrompt string) (string, error) {
	response, err := c.chain.Invoke(ctx, map[string]any{"prompt": userPrompt})
	if err != nil {
		return "", generation.Classify(ctx, c.name, fmt.Errorf("failed to run chain: %w", err))
	}
	if response == nil {
		return "", &generation.BackendError{Backend: c.name, Body: "empty response"}
	}

	log.Printf("[generation] %s reply length=%d", c.name, len(response.Content))
	return response.Content, nil
}
