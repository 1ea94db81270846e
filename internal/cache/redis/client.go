package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/query"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

// Client is the Redis-backed response cache, for deployments running more
// than one instance. TTL is enforced by Redis itself; capacity by the
// server's maxmemory policy.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis response cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Get(ctx context.Context, fingerprint string) (*query.CacheEntry, error) {
	key := responseKey(fingerprint)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}

	var entry query.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	entry.HitCount++
	if data, err := json.Marshal(entry); err == nil {
		// Refresh the stored hit count without extending the TTL.
		c.client.Set(ctx, key, data, redis.KeepTTL)
	}

	logger.Debug("Response cache hit", zap.String("fingerprint", fingerprint))
	return &entry, nil
}

func (c *Client) Set(ctx context.Context, entry query.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := c.client.Set(ctx, responseKey(entry.Fingerprint), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}

	logger.Debug("Response cached", zap.String("fingerprint", entry.Fingerprint))
	return nil
}

// Invalidate removes every cached response, used after re-ingestion so stale
// answers do not outlive the documents they came from.
func (c *Client) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "response:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Response cache invalidated")
	return nil
}

func responseKey(fingerprint string) string {
	return fmt.Sprintf("response:%s", fingerprint)
}
