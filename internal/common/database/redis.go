// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"usability-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// DefaultImageCacheTTL applies when database.redis.cache_ttl is unset.
const DefaultImageCacheTTL = 24 * time.Hour

// RedisClient backs the compressed-image cache.
type RedisClient struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedis builds the client lazily; nothing is dialed until first use.
func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ttl := config.GetDuration(cfg.CacheTTL)
	if ttl <= 0 {
		ttl = DefaultImageCacheTTL
	}
	return &RedisClient{Client: rdb, ttl: ttl}
}

// CacheTTL is how long a compressed image stays cached.
func (c *RedisClient) CacheTTL() time.Duration {
	return c.ttl
}

func (c *RedisClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
