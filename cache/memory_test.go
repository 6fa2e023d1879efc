package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v1" {
		t.Fatalf("Get(k) = %q, %v, %v", got, ok, err)
	}

	// Returned slices are copies
	got[0] = 'x'
	again, _, _ := c.Get(ctx, "k")
	if string(again) != "v1" {
		t.Errorf("cached value was mutated through returned slice: %q", again)
	}

	if err := c.Set(ctx, "k", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if got, _, _ := c.Get(ctx, "k"); string(got) != "v2" {
		t.Errorf("expected overwritten value v2, got %q", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(10)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("entry should be present before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed, Len() = %d", c.Len())
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)

	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "b", []byte("2"), time.Minute)
	// Touch a so b becomes the oldest
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), time.Minute)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, ok, _ := c.Get(ctx, key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
}

func TestMemoryCacheClose(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5)
	_ = c.Set(ctx, "a", []byte("1"), time.Minute)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Close should drop entries, Len() = %d", c.Len())
	}
}
