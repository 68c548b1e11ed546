/**
 * Storage Manager
 *
 * Owns every storage backend the service talks to: the raw and processed
 * image stores (local folders or S3 prefixes), plus the optional Qdrant
 * index, Postgres audit log and Redis answer cache.
 */

package storage

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/idverify/internal/config"
	"github.com/adverant/nexus/idverify/internal/logging"
)

// StorageManager coordinates the configured backends
type StorageManager struct {
	Raw       ImageStore
	Processed ImageStore

	// Optional backends, nil when not configured
	Vectors *QdrantClient
	Audit   *PostgresClient
	Answers *AnswerCache

	logger *logging.Logger
}

// NewStorageManager builds the image stores. Vector, audit and cache
// backends are attached separately since the worker needs only some of them.
func NewStorageManager(ctx context.Context, cfg *config.Config) (*StorageManager, error) {
	sm := &StorageManager{logger: logging.NewLogger("StorageManager")}

	switch cfg.Storage.Backend {
	case "s3":
		s3cfg := S3Config{
			Endpoint:        cfg.Storage.S3Endpoint,
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
		}
		client, err := NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		if err := EnsureBucket(ctx, client, s3cfg); err != nil {
			sm.logger.Warn("Failed to ensure bucket exists", "bucket", s3cfg.Bucket, "error", err)
		}
		sm.Raw = NewS3Store(client, s3cfg.Bucket, "raw")
		sm.Processed = NewS3Store(client, s3cfg.Bucket, "processed")

	default:
		raw, err := NewFileStore(cfg.Storage.RawDir)
		if err != nil {
			return nil, err
		}
		processed, err := NewFileStore(cfg.Storage.ProcessedDir)
		if err != nil {
			return nil, err
		}
		sm.Raw = raw
		sm.Processed = processed
		sm.logger.Info("Local image directories", "raw", raw.Dir(), "processed", processed.Dir())
	}

	sm.logger.Info("Image stores ready", "backend", cfg.Storage.Backend)
	return sm, nil
}

// AttachVectors connects to Qdrant and prepares the collection
func (sm *StorageManager) AttachVectors(ctx context.Context, cfg *config.Config) error {
	client, err := NewQdrantClient(cfg.Qdrant.Address, cfg.Qdrant.Collection, cfg.RAG.EmbeddingDims)
	if err != nil {
		return err
	}
	if err := client.EnsureCollection(ctx, cfg.Qdrant.Recreate); err != nil {
		client.Close()
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	sm.Vectors = client
	sm.logger.Info("Qdrant connected", "address", cfg.Qdrant.Address, "collection", cfg.Qdrant.Collection)
	return nil
}

// AttachAudit connects to Postgres when DATABASE_URL is set.
// Failure is logged and the service runs without an audit log.
func (sm *StorageManager) AttachAudit(ctx context.Context, databaseURL string) {
	if databaseURL == "" {
		return
	}
	client, err := NewPostgresClient(databaseURL)
	if err != nil {
		sm.logger.Warn("Audit log disabled", "error", err)
		return
	}
	if err := client.EnsureSchema(ctx); err != nil {
		sm.logger.Warn("Audit log disabled", "error", err)
		client.Close()
		return
	}
	sm.Audit = client
	sm.logger.Info("Audit log enabled")
}

// AttachAnswerCache connects to Redis when a URL is set
func (sm *StorageManager) AttachAnswerCache(cfg config.RedisConfig) {
	if cfg.URL == "" {
		return
	}
	cache, err := NewAnswerCache(cfg.URL, cfg.CacheTTL)
	if err != nil {
		sm.logger.Warn("Answer cache disabled", "error", err)
		return
	}
	sm.Answers = cache
	sm.logger.Info("Answer cache enabled", "ttl", cfg.CacheTTL.String())
}

// Close closes all storage connections
func (sm *StorageManager) Close() error {
	var errs []error

	if sm.Vectors != nil {
		if err := sm.Vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("qdrant close error: %w", err))
		}
	}
	if sm.Audit != nil {
		if err := sm.Audit.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if sm.Answers != nil {
		if err := sm.Answers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("storage close errors: %v", errs)
	}

	return nil
}
