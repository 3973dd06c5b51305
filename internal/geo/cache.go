package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache maps normalized query text to geocoding results. Entries never expire;
// callers end the cache's life with Clear or Close.
type Cache interface {
	Get(ctx context.Context, query string) ([]Result, bool)
	Set(ctx context.Context, query string, results []Result)
	Clear(ctx context.Context) error
	Close() error
}

// CacheKey normalizes query text for cache lookups
func CacheKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// MemoryCache is an unbounded in-process cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]Result
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]Result)}
}

// Get returns a copy of the cached results for query
func (c *MemoryCache) Get(_ context.Context, query string) ([]Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results, ok := c.entries[CacheKey(query)]
	if !ok {
		return nil, false
	}
	return append([]Result(nil), results...), true
}

// Set stores results for query
func (c *MemoryCache) Set(_ context.Context, query string, results []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[CacheKey(query)] = append([]Result(nil), results...)
}

// Len reports the number of cached queries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]Result)
	return nil
}

// Close releases the entries
func (c *MemoryCache) Close() error {
	return c.Clear(context.Background())
}

// RedisCache shares geocoding results between server instances
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisCache wraps an existing client. Keys are stored under prefix.
func NewRedisCache(rdb *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger}
}

func (c *RedisCache) key(query string) string {
	return c.prefix + CacheKey(query)
}

// Get returns cached results; any redis failure is treated as a miss
func (c *RedisCache) Get(ctx context.Context, query string) ([]Result, bool) {
	raw, err := c.rdb.Get(ctx, c.key(query)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("geocode cache get failed", zap.String("query", query), zap.Error(err))
		}
		return nil, false
	}

	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		c.logger.Warn("geocode cache entry corrupt", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	return results, true
}

// Set stores results without expiry
func (c *RedisCache) Set(ctx context.Context, query string, results []Result) {
	raw, err := json.Marshal(results)
	if err != nil {
		c.logger.Warn("geocode cache marshal failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.key(query), raw, 0).Err(); err != nil {
		c.logger.Warn("geocode cache set failed", zap.String("query", query), zap.Error(err))
	}
}

// Clear deletes every key under the cache prefix
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan geocode cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear geocode cache: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
