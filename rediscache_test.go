package tangguh

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, ""), mr
}

func TestRedisCacheSetGet(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	entry := &CacheEntry{Response: &Response{StatusCode: 200, Success: true, Message: "ok"}}
	cache.Set("GET:/api/users::", entry, time.Minute)

	got, found := cache.Get("GET:/api/users::")
	if !found {
		t.Fatal("expected cache hit")
	}
	if got.Response.StatusCode != 200 || got.Response.Message != "ok" {
		t.Errorf("round-tripped entry mismatch: %+v", got.Response)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	if _, found := cache.Get("absent"); found {
		t.Error("expected miss for absent key")
	}
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestRedisCache(t)

	cache.Set("k", &CacheEntry{Response: &Response{StatusCode: 200}}, 50*time.Millisecond)

	mr.FastForward(100 * time.Millisecond)

	if _, found := cache.Get("k"); found {
		t.Error("entry should expire with its redis TTL")
	}
}

func TestRedisCacheDeletePattern(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	cache.Set("GET:/api/users::", &CacheEntry{Response: &Response{}}, time.Minute)
	cache.Set("GET:/api/users:page=2:", &CacheEntry{Response: &Response{}}, time.Minute)
	cache.Set("GET:/api/posts::", &CacheEntry{Response: &Response{}}, time.Minute)

	cache.DeletePattern("/api/users")

	if _, found := cache.Get("GET:/api/users::"); found {
		t.Error("matching key should be removed")
	}
	if _, found := cache.Get("GET:/api/users:page=2:"); found {
		t.Error("matching key with params should be removed")
	}
	if _, found := cache.Get("GET:/api/posts::"); !found {
		t.Error("non-matching key should survive")
	}
}

func TestRedisCacheClear(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	cache.Set("a", &CacheEntry{Response: &Response{}}, time.Minute)
	cache.Set("b", &CacheEntry{Response: &Response{}}, time.Minute)

	cache.Clear()

	if _, found := cache.Get("a"); found {
		t.Error("clear should remove all entries")
	}
	if _, found := cache.Get("b"); found {
		t.Error("clear should remove all entries")
	}
}

func TestRedisCacheDelete(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	cache.Set("a", &CacheEntry{Response: &Response{}}, time.Minute)
	cache.Delete("a")

	if _, found := cache.Get("a"); found {
		t.Error("deleted key should be absent")
	}
}
