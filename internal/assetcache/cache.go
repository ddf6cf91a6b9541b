// Package assetcache is a two-tier byte cache for fetched asset
// content: an in-process LRU in front of an optional shared Redis
// tier. The catalog resolver itself is never cached; only asset
// payloads fetched by the modality loaders land here.
package assetcache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/geoscape-io/stacube/internal/observability"
)

type Options struct {
	// RedisAddr enables the shared tier when non-empty.
	RedisAddr string
	LRUSize   int
	TTL       time.Duration
	OpTimeout time.Duration

	// redis client tuning
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Cache struct {
	hot       *lru.Cache[string, []byte]
	rdb       *redis.Client
	ttl       time.Duration
	opTimeout time.Duration
}

func New(ctx context.Context, opts Options) (*Cache, error) {
	size := opts.LRUSize
	if size <= 0 {
		size = 512
	}
	hot, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("lru init: %w", err)
	}

	c := &Cache{
		hot:       hot,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
	}
	if c.ttl <= 0 {
		c.ttl = 10 * time.Minute
	}
	if c.opTimeout <= 0 {
		c.opTimeout = 250 * time.Millisecond
	}

	if opts.RedisAddr != "" {
		ro := &redis.Options{
			Addr:         opts.RedisAddr,
			PoolSize:     64,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
		}
		if opts.PoolSize > 0 {
			ro.PoolSize = opts.PoolSize
		}
		if opts.DialTimeout > 0 {
			ro.DialTimeout = opts.DialTimeout
		}
		if opts.ReadTimeout > 0 {
			ro.ReadTimeout = opts.ReadTimeout
		}
		if opts.WriteTimeout > 0 {
			ro.WriteTimeout = opts.WriteTimeout
		}
		rdb := redis.NewClient(ro)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		c.rdb = rdb
	}
	return c, nil
}

// Get looks a key up in the hot tier, then Redis. A Redis hit is
// promoted into the hot tier. Nil caches miss everything.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.hot.Get(key); ok {
		observability.IncAssetCacheHit("lru")
		return v, true
	}
	observability.IncAssetCacheMiss("lru")

	if c.rdb == nil {
		return nil, false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	v, err := c.rdb.Get(opCtx, key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else means Redis is
		// down and degrades to fetch, not failure.
		observability.IncAssetCacheMiss("redis")
		return nil, false
	}
	observability.IncAssetCacheHit("redis")
	c.hot.Add(key, v)
	return v, true
}

// Put stores a value in both tiers. Redis write failures are dropped;
// the hot tier still serves the session.
func (c *Cache) Put(ctx context.Context, key string, val []byte) {
	if c == nil {
		return
	}
	c.hot.Add(key, val)
	if c.rdb == nil {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	_ = c.rdb.Set(opCtx, key, val, c.ttl).Err()
}

// Purge removes keys from both tiers.
func (c *Cache) Purge(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		c.hot.Remove(k)
	}
	if c.rdb == nil {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.rdb.Del(opCtx, keys...).Err(); err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
