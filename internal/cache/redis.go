package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores avatar URLs resolved from the game platform.
type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedisCache initializes a Redis client. Only addr is mandatory,
// password/db are optional.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	opts := &redis.Options{
		Addr: addr,
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	return &RedisCache{Client: redis.NewClient(opts), ttl: ttl}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func avatarKey(externalID int64) string {
	return fmt.Sprintf("avatar:%d", externalID)
}

// GetAvatar returns the cached URL and whether it was present.
func (c *RedisCache) GetAvatar(ctx context.Context, externalID int64) (string, bool, error) {
	val, err := c.Client.Get(ctx, avatarKey(externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading avatar cache: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) SetAvatar(ctx context.Context, externalID int64, url string) error {
	if err := c.Client.Set(ctx, avatarKey(externalID), url, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing avatar cache: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateAvatar(ctx context.Context, externalID int64) error {
	return c.Client.Del(ctx, avatarKey(externalID)).Err()
}
