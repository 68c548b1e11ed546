/**
 * ID Verification Service - Index Worker
 *
 * Consumes index-document jobs from the asynq queue. Each job names a PDF
 * in the raw store; the worker splits it into sentence chunks, embeds them
 * and writes them to the Qdrant collection the HTTP service answers from.
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

	"github.com/adverant/nexus/idverify/internal/config"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/queue"
	"github.com/adverant/nexus/idverify/internal/rag"
	"github.com/adverant/nexus/idverify/internal/storage"
	"github.com/adverant/nexus/idverify/internal/telemetry"
)

func main() {
	logger := logging.NewLogger("worker")
	defer logging.Sync()

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		logging.Sync()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("Failed to load configuration", err)
	}

	if cfg.Queue.RedisURL == "" {
		fatal("Queue is not configured", errors.New("QUEUE_REDIS_URL is required"))
	}

	// Only the HTTP service may drop the collection on start
	cfg.Qdrant.Recreate = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		fatal("Failed to set up telemetry", err)
	}

	logger.Info("Index worker starting",
		"queue", cfg.Queue.Name,
		"concurrency", cfg.Queue.Concurrency,
		"qdrant", cfg.Qdrant.Address)

	sm, err := storage.NewStorageManager(ctx, cfg)
	if err != nil {
		fatal("Failed to initialize storage manager", err)
	}
	defer sm.Close()

	if err := sm.AttachVectors(ctx, cfg); err != nil {
		fatal("Failed to connect to Qdrant", err)
	}
	sm.AttachAnswerCache(cfg.Redis)

	embedder, err := rag.NewEmbeddingClient(cfg.RAG.BaseURL, cfg.RAG.Token, cfg.RAG.EmbeddingModel, cfg.RAG.EmbeddingDims)
	if err != nil {
		fatal("Failed to initialize embedding client", err)
	}

	var cache queue.CacheFlusher
	if sm.Answers != nil {
		cache = sm.Answers
	}

	handler := queue.NewIndexHandler(
		sm.Raw,
		rag.NewIndexer(embedder, sm.Vectors, cfg.RAG.SentencesPerChunk),
		cache,
		10*time.Minute,
	)

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.Queue.RedisURL,
		QueueName:   cfg.Queue.Name,
		Concurrency: cfg.Queue.Concurrency,
		Handler:     handler,
	})
	if err != nil {
		fatal("Failed to initialize queue consumer", err)
	}

	if err := consumer.Start(ctx); err != nil {
		fatal("Failed to start queue consumer", err)
	}
	logger.Info("Waiting for jobs")

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", "error", err)
	}

	logger.Info("Shutdown complete")
}
