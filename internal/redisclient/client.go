package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by GetJSON when the key is absent
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Next returns the next value of a named counter. Counters are scoped by
// name so callers can reset numbering per day by including the date.
func (c *Client) Next(ctx context.Context, name string) (int64, error) {
	n, err := c.rdb.Incr(ctx, fmt.Sprintf("seq:%s", name)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}
	return n, nil
}

// GetJSON loads a cached value into dst
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) error {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf("cache:%s", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON caches value under key for ttl
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.rdb.Set(ctx, fmt.Sprintf("cache:%s", key), raw, ttl).Err()
}

// ClaimIdempotencyKey records key with TTL. It returns false if the key was
// already claimed.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ReleaseIdempotencyKey drops a claim so the next delivery is processed
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}
