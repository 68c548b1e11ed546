/**
 * Embedding Client
 *
 * Generates sentence embeddings through an OpenAI-compatible endpoint
 * (the Hugging Face router by default, serving BAAI/bge-small-en-v1.5).
 */

package rag

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/adverant/nexus/idverify/internal/logging"
)

// maxChars is a rough per-text cap to stay under model token limits
const maxChars = 2000

// EmbeddingClient handles embedding generation
type EmbeddingClient struct {
	client     openai.Client
	model      string
	dimensions int
	logger     *logging.Logger
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(baseURL, token, model string, dimensions int) (*EmbeddingClient, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	opts := []option.RequestOption{option.WithRequestTimeout(30 * time.Second)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if token != "" {
		opts = append(opts, option.WithAPIKey(token))
	}

	return &EmbeddingClient{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
		logger:     logging.NewLogger("EmbeddingClient"),
	}, nil
}

// Embed returns one vector per text, in input order
func (e *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > maxChars {
			e.logger.Warn("Text too long, truncating", "chars", len(text), "max", maxChars)
			text = truncateUTF8(text, maxChars)
		}
		inputs[i] = text
	}

	startTime := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("invalid embedding dimensions: expected %d, got %d", e.dimensions, len(d.Embedding))
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[d.Index] = vec
	}

	e.logger.Debug("Embeddings generated",
		"model", e.model,
		"count", len(vectors),
		"duration_ms", time.Since(startTime).Milliseconds())

	return vectors, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
