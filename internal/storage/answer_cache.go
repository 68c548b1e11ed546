package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnswerCache memoizes generated answers per normalized question
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewAnswerCache connects to Redis and verifies the connection
func NewAnswerCache(redisURL string, ttl time.Duration) (*AnswerCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &AnswerCache{client: client, ttl: ttl, prefix: "idverify:answer:"}, nil
}

// CacheKey hashes the question after trimming and lowercasing it
func CacheKey(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])
}

// Get reports a miss as ("", false, nil)
func (c *AnswerCache) Get(ctx context.Context, question string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+CacheKey(question)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read answer cache: %w", err)
	}
	return val, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, question, answer string) error {
	if err := c.client.Set(ctx, c.prefix+CacheKey(question), answer, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write answer cache: %w", err)
	}
	return nil
}

// Flush drops every cached answer, called after the reference index changes
func (c *AnswerCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan answer cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *AnswerCache) Close() error {
	return c.client.Close()
}
