// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultCacheTTL is how long provider responses stay cached when no TTL
// is configured.
const DefaultCacheTTL = 6 * time.Hour

const cacheKeyPrefix = "evidence:provider:"

// RedisCache stores provider responses in Redis as JSON.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// Get returns the cached records for key. The boolean is false on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]types.SourceRecord, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache key %s: %w", key, err)
	}
	var records []types.SourceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("decoding cache key %s: %w", key, err)
	}
	return records, true, nil
}

// Set stores records under key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, records []types.SourceRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cache key %s: %w", key, err)
	}
	return nil
}

// CacheKey derives the cache key for a provider query. The query is
// lower-cased and whitespace-collapsed so trivially different spellings
// share an entry.
func CacheKey(kind types.ProviderKind, query string, maxResults int) string {
	norm := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", kind, maxResults, norm)))
	return fmt.Sprintf("%s%s:%x", cacheKeyPrefix, kind, sum[:12])
}

// CachedClient serves repeated queries from a RedisCache and populates it
// on successful misses. Cache failures are logged and bypassed; they
// never fail a search.
type CachedClient struct {
	Client Client
	Cache  *RedisCache
	Logger *zap.Logger
}

// Kind returns the wrapped provider's identifier.
func (c *CachedClient) Kind() types.ProviderKind { return c.Client.Kind() }

// Search consults the cache before delegating to the wrapped client.
func (c *CachedClient) Search(ctx context.Context, query string, maxResults int) ([]types.SourceRecord, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	key := CacheKey(c.Kind(), query, maxResults)

	records, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("provider cache read failed", zap.String("provider", string(c.Kind())), zap.Error(err))
	} else if ok {
		logger.Debug("provider cache hit", zap.String("provider", string(c.Kind())), zap.Int("count", len(records)))
		return records, nil
	}

	records, err = c.Client.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(ctx, key, records); err != nil {
		logger.Warn("provider cache write failed", zap.String("provider", string(c.Kind())), zap.Error(err))
	}
	return records, nil
}

// WithCache wraps every client with cache.
func WithCache(clients []Client, cache *RedisCache, logger *zap.Logger) []Client {
	out := make([]Client, len(clients))
	for i, c := range clients {
		out[i] = &CachedClient{Client: c, Cache: cache, Logger: logger}
	}
	return out
}
