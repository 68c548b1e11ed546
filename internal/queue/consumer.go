/**
 * Queue Consumer
 *
 * Consumes index-document jobs from Redis through asynq and feeds the
 * referenced PDFs into the vector index.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/adverant/nexus/idverify/internal/errors"
	"github.com/adverant/nexus/idverify/internal/logging"
	"github.com/adverant/nexus/idverify/internal/storage"
)

// DocumentIndexer indexes one PDF and reports the number of chunks written
type DocumentIndexer interface {
	Index(ctx context.Context, source string, pdfData []byte) (int, error)
}

// CacheFlusher drops cached answers after the index changes
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

// IndexHandler processes index-document tasks
type IndexHandler struct {
	store   storage.ImageStore
	indexer DocumentIndexer
	cache   CacheFlusher // may be nil
	timeout time.Duration
	logger  *logging.Logger
}

// NewIndexHandler creates the task handler. timeout <= 0 means 5 minutes.
func NewIndexHandler(store storage.ImageStore, indexer DocumentIndexer, cache CacheFlusher, timeout time.Duration) *IndexHandler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &IndexHandler{
		store:   store,
		indexer: indexer,
		cache:   cache,
		timeout: timeout,
		logger:  logging.NewLogger("IndexHandler"),
	}
}

// ProcessTask implements asynq.Handler. Failures that cannot succeed on
// retry (bad payload, missing file, unreadable PDF) skip retries.
func (h *IndexHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var job IndexJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With("job_id", job.JobID, "filename", job.Filename)
	log.Info("Processing index job")

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	data, err := h.store.Get(processCtx, job.Filename)
	if errors.Is(err, storage.ErrNotFound) {
		log.Error("Document not found")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	chunks, err := h.indexer.Index(processCtx, job.Filename, data)
	duration := time.Since(startTime)
	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Error("Indexing timed out", "duration", duration.String(), "timeout", h.timeout.String())
			return fmt.Errorf("indexing timeout: %w", err)
		}

		var pe *apperrors.ProcessingError
		if errors.As(err, &pe) && isPermanent(pe) {
			log.Error("Indexing failed permanently", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		log.Error("Indexing failed", "error", err, "duration_ms", duration.Milliseconds())
		return fmt.Errorf("document indexing failed: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Flush(ctx); err != nil {
			log.Warn("Failed to flush answer cache", "error", err)
		}
	}

	log.Info("Index job completed", "chunks", chunks, "duration_ms", duration.Milliseconds())
	return nil
}

// isPermanent reports whether retrying cannot help. An unparsable PDF fails
// the same way every time.
func isPermanent(pe *apperrors.ProcessingError) bool {
	return pe.Code == apperrors.ErrorIndexingFailed && pe.Details["stage"] == "load"
}

// Consumer handles job consumption from Redis queue
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Handler     *IndexHandler
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Handler == nil {
		return nil, fmt.Errorf("Handler is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("QueueConsumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			// Exponential backoff: 5s, 10s, 20s, capped at 60s
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
			Logger: logging.NewLogger("asynq").Sugared(),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(TaskIndexDocument, cfg.Handler)

	return &Consumer{
		server: server,
		mux:    mux,
		config: cfg,
		logger: logger,
	}, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}
