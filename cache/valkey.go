package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyOptions configures the connection to a Valkey server
type ValkeyOptions struct {
	Address  string
	Password string
	UseTLS   bool
	Prefix   string // Prepended to every key
}

// ValkeyCache stores entries in a shared Valkey server so several replicas
// reuse each other's results.
type ValkeyCache struct {
	client valkey.Client
	prefix string
}

// NewValkeyCache connects and pings the server
func NewValkeyCache(ctx context.Context, opts ValkeyOptions) (*ValkeyCache, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.UseTLS {
		clientOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	slog.Info("[ValkeyCache] Connected to valkey", slog.String("address", opts.Address))
	return &ValkeyCache{client: client, prefix: opts.Prefix}, nil
}

func (c *ValkeyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Do(ctx, c.client.B().Get().Key(c.prefix+key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("valkey get: %w", err)
	}
	return value, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	cmd := c.client.B().Set().Key(c.prefix + key).Value(valkey.BinaryString(value)).ExSeconds(seconds).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (c *ValkeyCache) Close() error {
	c.client.Close()
	return nil
}
