// internal/common/database/redis.go
package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"funnel-coach/internal/common/config"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "funnel-coach:analysis:"

// RedisClient wraps the Redis client
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client
func NewRedis(cfg config.CacheConfig) (*RedisClient, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis address is not set")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisClient{Client: rdb}, nil
}

// Ping tests the Redis connection
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// CachedResult is a stored model reply.
type CachedResult struct {
	Text     string    `json:"text"`
	Model    string    `json:"model"`
	StoredAt time.Time `json:"storedAt"`
}

// ResultCache stores model replies keyed by the exact prompt that produced them.
type ResultCache struct {
	client *RedisClient
	ttl    time.Duration
}

func NewResultCache(client *RedisClient, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, ttl: ttl}
}

// Key derives the cache key for model and prompt.
func Key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return resultKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the stored reply. found is false on a miss.
func (r *ResultCache) Get(ctx context.Context, model, prompt string) (result *CachedResult, found bool, err error) {
	raw, err := r.client.Client.Get(ctx, Key(model, prompt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var out CachedResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return &out, true, nil
}

// Put stores text for model and prompt with the configured TTL.
func (r *ResultCache) Put(ctx context.Context, model, prompt, text string) error {
	payload, err := json.Marshal(CachedResult{Text: text, Model: model, StoredAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := r.client.Client.Set(ctx, Key(model, prompt), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (r *ResultCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
