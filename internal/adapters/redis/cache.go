package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var _ ports.Cache = (*Cache)(nil)

// Cache is a byte-value cache on Redis strings.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// NewCache creates a Redis cache whose keys are namespaced under "cache:".
func NewCache(client redis.UniversalClient) *Cache {
	return &Cache{client: client, prefix: "cache:"}
}

// Set stores value under key for ttl. A non-positive ttl is raised to one second.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get returns the cached value, or nil without error when the key is absent.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

// Health pings the server.
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
