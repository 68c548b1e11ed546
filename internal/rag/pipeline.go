/**
 * Question answering over the reference document
 *
 * Indexing: PDF → pages → sentence chunks → embeddings → Qdrant.
 * Answering: cache → embed question → top-k chunks → prompt → generate.
 */

package rag

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/storage"
)

var tracer = otel.Tracer("github.com/adverant/nexus/idverify/internal/rag")

// Embedder turns texts into vectors, one per text in order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator completes a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex stores and searches chunk vectors
type VectorIndex interface {
	UpsertVectors(ctx context.Context, points []*storage.VectorPoint) error
	SearchVectors(ctx context.Context, query []float32, limit int) ([]*storage.VectorPoint, error)
}

// AnswerCache memoizes answers. Optional.
type AnswerCache interface {
	Get(ctx context.Context, question string) (string, bool, error)
	Set(ctx context.Context, question, answer string) error
}

var promptTemplate = template.Must(template.New("prompt").Parse(
	`Answer the following query based on the provided context. If the context does not include an answer, reply with 'I don't know'.

Query: {{.Query}}
Documents:
{{range .Documents}}{{.}}
{{end}}Answer:
`))

// BuildPrompt renders the fixed answering prompt
func BuildPrompt(query string, documents []string) (string, error) {
	var buf bytes.Buffer
	err := promptTemplate.Execute(&buf, struct {
		Query     string
		Documents []string
	}{query, documents})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}

// Indexer writes document chunks into the vector index
type Indexer struct {
	embedder          Embedder
	index             VectorIndex
	sentencesPerChunk int
	batchSize         int
	logger            *logging.Logger
}

func NewIndexer(embedder Embedder, index VectorIndex, sentencesPerChunk int) *Indexer {
	return &Indexer{
		embedder:          embedder,
		index:             index,
		sentencesPerChunk: sentencesPerChunk,
		batchSize:         32,
		logger:            logging.NewLogger("Indexer"),
	}
}

// Index loads a PDF and stores its chunks, returning how many were written
func (ix *Indexer) Index(ctx context.Context, source string, pdfData []byte) (int, error) {
	ctx, span := tracer.Start(ctx, "rag.Index")
	defer span.End()
	span.SetAttributes(attribute.String("source", source))

	startTime := time.Now()

	ix.logger.Info("Step 1: Loading PDF", "source", source, "bytes", len(pdfData))
	pages, err := LoadPDF(pdfData)
	if err != nil {
		pe := apperrors.NewIndexingFailedError(source, err)
		pe.Details["stage"] = "load"
		return 0, pe
	}

	var chunks []string
	for _, page := range pages {
		pageChunks, err := SplitSentences(page.Text, ix.sentencesPerChunk)
		if err != nil {
			return 0, apperrors.NewIndexingFailedError(source, err)
		}
		chunks = append(chunks, pageChunks...)
	}

	ix.logger.Info("Step 2: Embedding chunks", "source", source, "pages", len(pages), "chunks", len(chunks))
	n, err := ix.IndexChunks(ctx, source, chunks)
	if err != nil {
		return 0, err
	}

	ix.logger.Info("Step 3: Document indexed",
		"source", source,
		"chunks", n,
		"duration_ms", time.Since(startTime).Milliseconds())
	return n, nil
}

// ChunkID is stable per source and position, so a retried job overwrites
// the points an earlier attempt wrote
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(index))).String()
}

// IndexChunks embeds and stores pre-split chunks in batches
func (ix *Indexer) IndexChunks(ctx context.Context, source string, chunks []string) (int, error) {
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := ix.embedder.Embed(ctx, batch)
		if err != nil {
			return 0, apperrors.NewIndexingFailedError(source, err)
		}
		if len(vectors) != len(batch) {
			return 0, apperrors.NewIndexingFailedError(source,
				fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors)))
		}

		points := make([]*storage.VectorPoint, len(batch))
		for i, chunk := range batch {
			points[i] = &storage.VectorPoint{
				ID:     ChunkID(source, start+i),
				Vector: vectors[i],
				Metadata: map[string]interface{}{
					"content":     chunk,
					"source":      source,
					"chunk_index": start + i,
				},
			}
		}

		if err := ix.index.UpsertVectors(ctx, points); err != nil {
			return 0, apperrors.NewIndexingFailedError(source, err)
		}
	}
	return len(chunks), nil
}

// Pipeline answers questions from the indexed chunks
type Pipeline struct {
	embedder  Embedder
	index     VectorIndex
	generator Generator
	cache     AnswerCache // may be nil
	topK      int
	logger    *logging.Logger
}

func NewPipeline(embedder Embedder, index VectorIndex, generator Generator, cache AnswerCache, topK int) *Pipeline {
	if topK < 1 {
		topK = 3
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		generator: generator,
		cache:     cache,
		topK:      topK,
		logger:    logging.NewLogger("RAGPipeline"),
	}
}

// Ask returns the generated answer to question
func (p *Pipeline) Ask(ctx context.Context, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "rag.Ask")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.NewInvalidRequestError("question is required")
	}

	if p.cache != nil {
		answer, ok, err := p.cache.Get(ctx, question)
		if err != nil {
			p.logger.Warn("Answer cache read failed", "error", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return answer, nil
		}
	}

	vectors, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		return "", apperrors.NewGenerationFailedError(fmt.Errorf("embed question: %w", err))
	}
	if len(vectors) != 1 {
		return "", apperrors.NewGenerationFailedError(fmt.Errorf("expected 1 embedding, got %d", len(vectors)))
	}

	hits, err := p.index.SearchVectors(ctx, vectors[0], p.topK)
	if err != nil {
		return "", apperrors.NewGenerationFailedError(fmt.Errorf("retrieve documents: %w", err))
	}

	documents := make([]string, 0, len(hits))
	for _, hit := range hits {
		if content, ok := hit.Metadata["content"].(string); ok && content != "" {
			documents = append(documents, content)
		}
	}
	span.SetAttributes(attribute.Int("rag.documents", len(documents)))

	prompt, err := BuildPrompt(question, documents)
	if err != nil {
		return "", apperrors.NewGenerationFailedError(err)
	}

	answer, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", apperrors.NewGenerationFailedError(err)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, question, answer); err != nil {
			p.logger.Warn("Answer cache write failed", "error", err)
		}
	}

	p.logger.Debug("Question answered", "documents", len(documents), "answer_chars", len(answer))
	return answer, nil
}
