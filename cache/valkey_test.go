//go:build integration
// +build integration

package cache

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestValkeyCache(t *testing.T) *ValkeyCache {
	t.Helper()
	addr := os.Getenv("VALKEY_INIT_ADDRESS")
	if addr == "" {
		t.Skip("Skipping: VALKEY_INIT_ADDRESS not set")
	}

	c, err := NewValkeyCache(context.Background(), ValkeyOptions{
		Address:  addr,
		Password: os.Getenv("VALKEY_PASSWORD"),
		UseTLS:   os.Getenv("VALKEY_TLS") == "true",
		Prefix:   "dc-test:" + uuid.NewString() + ":",
	})
	if err != nil {
		t.Fatalf("NewValkeyCache() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestValkeyCacheGetSet(t *testing.T) {
	c := newTestValkeyCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	value := []byte("{\"text_input\":\"a\x00b\"}")
	if err := c.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get(k) = %q, want %q", got, value)
	}
}

func TestValkeyCacheSetsExpiry(t *testing.T) {
	c := newTestValkeyCache(t)
	ctx := context.Background()

	testCases := []struct {
		name    string
		ttl     time.Duration
		wantMax int64
	}{
		{name: "minute", ttl: time.Minute, wantMax: 60},
		{name: "sub-second rounds up", ttl: 100 * time.Millisecond, wantMax: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := c.Set(ctx, tc.name, []byte("v"), tc.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			ttl, err := c.client.Do(ctx, c.client.B().Ttl().Key(c.prefix+tc.name).Build()).AsInt64()
			if err != nil {
				t.Fatalf("TTL error = %v", err)
			}
			if ttl < 0 || ttl > tc.wantMax {
				t.Errorf("TTL = %d, want between 0 and %d", ttl, tc.wantMax)
			}
		})
	}
}

func TestValkeyCacheExpires(t *testing.T) {
	c := newTestValkeyCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2100 * time.Millisecond)
	if _, ok, err := c.Get(ctx, "short"); err != nil || ok {
		t.Errorf("expired entry still served: ok %v, err %v", ok, err)
	}
}
