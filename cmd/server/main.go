/**
 * ID Verification Service - HTTP Entry Point
 *
 * Serves document verification (de-skew, OCR, name extraction and fuzzy
 * match) and question answering over the indexed reference PDF.
 */

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/adverant/nexus/idverify/internal/config"
	"github.com/adverant/nexus/idverify/internal/imaging"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/processor"
	"github.com/adverant/nexus/idverify/internal/queue"
	"github.com/adverant/nexus/idverify/internal/rag"
	"github.com/adverant/nexus/idverify/internal/server"
	"github.com/adverant/nexus/idverify/internal/storage"
	"github.com/adverant/nexus/idverify/internal/telemetry"
)

var logger = logging.NewLogger("main")

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	logging.Sync()
	os.Exit(1)
}

func main() {
	defer logging.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		fatal("Failed to set up telemetry", err)
	}

	logger.Info("ID verification service starting",
		"addr", cfg.Addr(),
		"storage", cfg.Storage.Backend,
		"ner", cfg.NER.Provider,
		"qdrant", cfg.Qdrant.Address)

	sm, err := storage.NewStorageManager(ctx, cfg)
	if err != nil {
		fatal("Failed to initialize storage manager", err)
	}
	sm.AttachAudit(ctx, cfg.DatabaseURL)
	sm.AttachAnswerCache(cfg.Redis)

	extractor, err := buildExtractor(ctx, cfg, sm)
	if err != nil {
		fatal("Failed to initialize extractor", err)
	}

	deps := server.Deps{
		Raw:      sm.Raw,
		Verifier: extractor,
	}
	if sm.Audit != nil {
		deps.Audit = sm.Audit
	}

	if pipeline, err := buildPipeline(ctx, cfg, sm); err != nil {
		logger.Warn("Question answering disabled", "error", err)
	} else {
		deps.Answerer = pipeline
	}

	if cfg.Queue.RedisURL != "" {
		producer, err := queue.NewProducer(cfg.Queue.RedisURL, cfg.Queue.Name)
		if err != nil {
			fatal("Failed to initialize queue producer", err)
		}
		defer producer.Close()
		deps.Queue = producer
	}

	srv, err := server.New(cfg.Server, deps)
	if err != nil {
		fatal("Failed to initialize server", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", "error", err)
	}
	if err := processor.SharedTesseract(processor.TesseractConfig{}).Close(); err != nil {
		logger.Error("Error closing Tesseract", "error", err)
	}
	if err := sm.Close(); err != nil {
		logger.Error("Error closing storage manager", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", "error", err)
	}

	logger.Info("Shutdown complete")
}

func buildExtractor(ctx context.Context, cfg *config.Config, sm *storage.StorageManager) (*processor.Extractor, error) {
	var ocr processor.OCRProvider = processor.SharedTesseract(processor.TesseractConfig{
		Language:       cfg.OCR.Language,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
	})
	if cfg.OCR.RequestsPerSecond > 0 {
		ocr = processor.NewLimitedOCR(rate.NewLimiter(rate.Limit(cfg.OCR.RequestsPerSecond), cfg.OCR.Burst), ocr)
	}

	ner, err := processor.NewNERProvider(ctx, cfg.NER)
	if err != nil {
		return nil, err
	}

	return processor.NewExtractor(
		imaging.NewSkewCorrector(sm.Raw, sm.Processed),
		processor.NewTextLocator(sm.Processed, ocr, cfg.OCR.ConfidenceThreshold),
		processor.NewNameIdentifier(ner),
	)
}

// buildPipeline connects the vector index, indexes the reference PDF and
// returns the answering pipeline
func buildPipeline(ctx context.Context, cfg *config.Config, sm *storage.StorageManager) (*rag.Pipeline, error) {
	if cfg.RAG.Token == "" {
		return nil, errors.New("HUGGINGFACE_TOKEN is not set")
	}

	embedder, err := rag.NewEmbeddingClient(cfg.RAG.BaseURL, cfg.RAG.Token, cfg.RAG.EmbeddingModel, cfg.RAG.EmbeddingDims)
	if err != nil {
		return nil, err
	}
	generator, err := rag.NewChatGenerator(cfg.RAG.BaseURL, cfg.RAG.Token, cfg.RAG.GenerationModel, cfg.RAG.MaxTokens)
	if err != nil {
		return nil, err
	}

	if err := sm.AttachVectors(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.RAG.PDFFileName != "" {
		indexReference(ctx, cfg.RAG, sm, rag.NewIndexer(embedder, sm.Vectors, cfg.RAG.SentencesPerChunk))
	}

	var cache rag.AnswerCache
	if sm.Answers != nil {
		cache = sm.Answers
	}

	return rag.NewPipeline(embedder, sm.Vectors, generator, cache, cfg.RAG.TopK), nil
}

// indexReference indexes the configured PDF from the raw store. A missing
// or broken file leaves the service up with an empty index.
func indexReference(ctx context.Context, cfg config.RAGConfig, sm *storage.StorageManager, indexer *rag.Indexer) {
	data, err := sm.Raw.Get(ctx, cfg.PDFFileName)
	if err != nil {
		logger.Warn("Reference document unavailable", "file", cfg.PDFFileName, "error", err)
		return
	}

	chunks, err := indexer.Index(ctx, cfg.PDFFileName, data)
	if err != nil {
		logger.Error("Failed to index reference document", "file", cfg.PDFFileName, "error", err)
		return
	}

	if sm.Answers != nil {
		if err := sm.Answers.Flush(ctx); err != nil {
			logger.Warn("Failed to flush answer cache", "error", err)
		}
	}

	logger.Info("Reference document indexed", "file", cfg.PDFFileName, "chunks", chunks)
}
