package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores quotes between live fetches.
type Cache interface {
	Get(ctx context.Context, key Key) (Quote, bool, error)
	Set(ctx context.Context, key Key, q Quote, ttl time.Duration) error
}

// RedisCache keeps msgpack-encoded quotes in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis opens a client and checks it answers.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key Key) (Quote, bool, error) {
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, nil
	}
	if err != nil {
		return Quote{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	q, err := decodeQuote(data)
	if err != nil {
		return Quote{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return q, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key Key, q Quote, ttl time.Duration) error {
	data, err := encodeQuote(q)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func encodeQuote(q Quote) ([]byte, error) {
	return msgpack.Marshal(q)
}

func decodeQuote(data []byte) (Quote, error) {
	var q Quote
	err := msgpack.Unmarshal(data, &q)
	return q, err
}

// MemoryCache is an in-process Cache for single-instance deployments and tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (Quote, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key.String())
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		return Quote{}, false, nil
	}
	q, err := decodeQuote(e.data)
	if err != nil {
		return Quote{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return q, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key Key, q Quote, ttl time.Duration) error {
	data, err := encodeQuote(q)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key.String()] = e
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
