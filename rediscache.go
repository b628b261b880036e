package tangguh

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a ResponseCache backed by Redis, for deployments where
// multiple client processes should share one response cache. Redis
// failures degrade to cache misses; the cache is best effort by contract.
type RedisCache struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisCache creates a Redis-backed cache. All keys are stored under
// the given prefix; an empty prefix defaults to "tangguh:cache:".
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "tangguh:cache:"
	}
	return &RedisCache{
		rdb:     rdb,
		prefix:  prefix,
		timeout: 2 * time.Second,
	}
}

func (c *RedisCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Get retrieves a fresh entry. Redis TTL expiry makes stale entries absent.
func (c *RedisCache) Get(key string) (*CacheEntry, bool) {
	ctx, cancel := c.ctx()
	defer cancel()

	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if !entry.ExpiresAt.IsZero() && !time.Now().Before(entry.ExpiresAt) {
		ctxDel, cancelDel := c.ctx()
		defer cancelDel()
		_ = c.rdb.Del(ctxDel, c.prefix+key).Err()
		return nil, false
	}
	return &entry, true
}

// Set stores an entry with the given TTL.
func (c *RedisCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = time.Now()
	}
	entry.ExpiresAt = entry.StoredAt.Add(ttl)

	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Delete removes a single entry.
func (c *RedisCache) Delete(key string) {
	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.rdb.Del(ctx, c.prefix+key).Err()
}

// DeletePattern removes every entry whose key contains pattern as a
// substring, scanning the prefix keyspace.
func (c *RedisCache) DeletePattern(pattern string) {
	c.deleteByMatch(c.prefix + "*" + pattern + "*")
}

// Clear removes all entries under the cache prefix.
func (c *RedisCache) Clear() {
	c.deleteByMatch(c.prefix + "*")
}

func (c *RedisCache) deleteByMatch(match string) {
	ctx, cancel := c.ctx()
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = c.rdb.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
