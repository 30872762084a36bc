package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := store.Set(ctx, "k", []byte("v"), time.Hour, TagGoldenCross); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v err %v, want hit", ok, err)
	}
	if string(value) != "v" {
		t.Errorf("value = %q, want %q", value, "v")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Set(ctx, "k", []byte("v"), time.Minute)

	now = now.Add(59 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("entry expired too early")
	}

	now = now.Add(time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry not removed, Len = %d", store.Len())
	}
}

func TestMemoryStoreInvalidateByTag(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), time.Hour, TagGoldenCross, TagDailyData)
	store.Set(ctx, "b", []byte("2"), time.Hour, TagGoldenCross, TagQuarterlyData)
	store.Set(ctx, "c", []byte("3"), time.Hour, "other")

	if err := store.Invalidate(ctx, TagDailyData); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "a"); ok {
		t.Error("a should be invalidated by daily-data")
	}
	if _, ok, _ := store.Get(ctx, "b"); !ok {
		t.Error("b should survive daily-data invalidation")
	}

	if err := InvalidateAll(ctx, store, TagGoldenCross); err != nil {
		t.Fatalf("InvalidateAll failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "b"); ok {
		t.Error("b should be invalidated by golden-cross")
	}
	if _, ok, _ := store.Get(ctx, "c"); !ok {
		t.Error("c carries no golden-cross tag and should survive")
	}
}

func TestMemoryStoreOverwriteRetags(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "k", []byte("old"), time.Hour, TagDailyData)
	store.Set(ctx, "k", []byte("new"), time.Hour, TagQuarterlyData)

	store.Invalidate(ctx, TagDailyData)
	value, ok, _ := store.Get(ctx, "k")
	if !ok || string(value) != "new" {
		t.Errorf("Get = %q ok %v, want new entry untouched by old tag", value, ok)
	}
}

func TestInvalidateAllNil(t *testing.T) {
	if err := InvalidateAll(context.Background(), nil, TagGoldenCross); err != nil {
		t.Errorf("InvalidateAll(nil) = %v, want nil", err)
	}
}

// checkGeneration exercises the generation contract shared by every Store
func checkGeneration(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	base, err := store.Generation(ctx, TagGoldenCross, TagDailyData)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	if base != 0 {
		t.Errorf("fresh generation = %d, want 0", base)
	}

	store.Invalidate(ctx, TagDailyData)
	store.Invalidate(ctx, TagDailyData)
	store.Invalidate(ctx, "unrelated")

	got, err := store.Generation(ctx, TagGoldenCross, TagDailyData)
	if err != nil {
		t.Fatalf("Generation failed: %v", err)
	}
	if got != 2 {
		t.Errorf("generation = %d, want 2 after two daily-data invalidations", got)
	}
	if got, _ := store.Generation(ctx, TagQuarterlyData); got != 0 {
		t.Errorf("quarterly-data generation = %d, want 0", got)
	}
	if got, _ := store.Generation(ctx); got != 0 {
		t.Errorf("generation of no tags = %d, want 0", got)
	}
}

func TestMemoryStoreGeneration(t *testing.T) {
	checkGeneration(t, NewMemoryStore())
}

func TestGenerationKey(t *testing.T) {
	if GenerationKey("golden-cross-x", 0) == GenerationKey("golden-cross-x", 1) {
		t.Error("generations must produce distinct keys")
	}
}
