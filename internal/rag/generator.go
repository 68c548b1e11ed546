package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ChatGenerator produces answers with a chat-completion model
type ChatGenerator struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewChatGenerator(baseURL, token, model string, maxTokens int) (*ChatGenerator, error) {
	if model == "" {
		return nil, fmt.Errorf("generation model is required")
	}

	opts := []option.RequestOption{option.WithRequestTimeout(2 * time.Minute)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if token != "" {
		opts = append(opts, option.WithAPIKey(token))
	}

	return &ChatGenerator{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
