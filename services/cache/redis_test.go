package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nasdaq_screener/config"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreGetSet(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get = ok %v err %v, want miss", ok, err)
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Hour, TagGoldenCross); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("Get = %q ok %v err %v, want v", value, ok, err)
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), time.Minute, TagDailyData)

	mr.FastForward(59 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("entry expired too early")
	}
	mr.FastForward(time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	if mr.Exists(redisTagPrefix + TagDailyData) {
		t.Error("tag set should expire with its newest member")
	}
}

func TestRedisStoreInvalidateByTag(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Hour, TagGoldenCross, TagDailyData)
	store.Set(ctx, "b", []byte("2"), time.Hour, TagGoldenCross, TagQuarterlyData)

	if err := store.Invalidate(ctx, TagDailyData); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Error("a should be invalidated by daily-data")
	}
	if _, ok, _ := store.Get(ctx, "b"); !ok {
		t.Error("b should survive daily-data invalidation")
	}
	if mr.Exists(redisTagPrefix + TagDailyData) {
		t.Error("invalidated tag set should be removed")
	}

	// invalidating a tag nobody carries still succeeds
	if err := store.Invalidate(ctx, "unused"); err != nil {
		t.Errorf("Invalidate of unused tag failed: %v", err)
	}
}

func TestRedisStoreGeneration(t *testing.T) {
	store, _ := newRedisStore(t)
	checkGeneration(t, store)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	store, err := NewRedisStore(context.Background(), config.CacheConfig{RedisAddr: addr})
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()
	if err := store.Set(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists(redisKeyPrefix + "k") {
		t.Error("entry not written under the cache prefix")
	}

	mr.Close()
	if _, err := NewRedisStore(context.Background(), config.CacheConfig{RedisAddr: addr}); err == nil {
		t.Error("NewRedisStore should fail when redis is unreachable")
	}
}
