package assetcache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

// creates a two-tier cache backed by miniredis
func newMini(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	c, err := New(ctx, Options{RedisAddr: mr.Addr(), LRUSize: 4, TTL: time.Minute})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestPutGet(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("miss expected on empty cache")
	}

	c.Put(ctx, "k", []byte("payload"))
	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "payload" {
		t.Fatalf("Get = %q,%v", got, ok)
	}

	// the value reached the shared tier too
	if v, err := mr.Get("k"); err != nil || v != "payload" {
		t.Fatalf("redis value = %q, err %v", v, err)
	}
}

func TestRedisHitPromotes(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	// value present only in redis, as if written by another process
	if err := mr.Set("warm", "v"); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(ctx, "warm")
	if !ok || string(got) != "v" {
		t.Fatalf("Get = %q,%v", got, ok)
	}
	// now served from the hot tier even with redis gone
	mr.Close()
	got, ok = c.Get(ctx, "warm")
	if !ok || string(got) != "v" {
		t.Fatalf("promoted Get = %q,%v", got, ok)
	}
}

func TestRedisDownDegradesToMiss(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	if err := mr.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	mr.Close()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("redis-only value should miss when redis is down")
	}
	// Put must not fail either
	c.Put(ctx, "k2", []byte("x"))
	if got, ok := c.Get(ctx, "k2"); !ok || string(got) != "x" {
		t.Fatalf("hot tier should still serve: %q,%v", got, ok)
	}
}

func TestPurge(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	c.Put(ctx, "a", []byte("1"))
	c.Put(ctx, "b", []byte("2"))
	if err := c.Purge(ctx, "a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("a should be purged")
	}
	if _, ok := c.Get(ctx, "b"); ok {
		t.Fatal("b should be purged")
	}
	if mr.Exists("a") || mr.Exists("b") {
		t.Fatal("redis keys should be deleted")
	}

	if err := c.Purge(ctx); err != nil {
		t.Fatalf("empty purge: %v", err)
	}
}

func TestLRUOnly(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, Options{LRUSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	c.Put(ctx, "a", []byte("1"))
	if got, ok := c.Get(ctx, "a"); !ok || string(got) != "1" {
		t.Fatalf("Get = %q,%v", got, ok)
	}
	if err := c.Purge(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatal("purged key should miss")
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("nil cache should miss")
	}
	c.Put(ctx, "k", []byte("v"))
	if err := c.Purge(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
