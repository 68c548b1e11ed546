package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/idverify/internal/logging"
)

// Producer enqueues indexing jobs for the worker
type Producer struct {
	client    *asynq.Client
	queueName string
	logger    *logging.Logger
}

// NewProducer creates a producer on the given Redis
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		logger:    logging.NewLogger("QueueProducer"),
	}, nil
}

// EnqueueIndex schedules filename for indexing and returns the job ID
func (p *Producer) EnqueueIndex(ctx context.Context, filename string) (string, error) {
	job := IndexJob{JobID: uuid.New().String(), Filename: filename}

	task, err := NewIndexTask(job)
	if err != nil {
		return "", err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.JobID),
		asynq.Queue(p.queueName),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	p.logger.Info("Index job enqueued", "job_id", info.ID, "filename", filename, "queue", info.Queue)
	return job.JobID, nil
}

// Close closes the underlying Redis connection
func (p *Producer) Close() error {
	return p.client.Close()
}
