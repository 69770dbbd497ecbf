package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLUser    = 10 * time.Minute // user profile (display fields rarely change)
	TTLDefault = 5 * time.Minute
)

// Key prefixes
const (
	PrefixUser = "user:"
)

// ErrMiss is returned when a key is absent or the cache is disabled
var ErrMiss = errors.New("cache miss")

// Service is a JSON-over-Redis cache
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	GetUser(ctx context.Context, userID uint64, dest interface{}) error
	SetUser(ctx context.Context, userID uint64, data interface{}) error
	InvalidateUser(ctx context.Context, userID uint64) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService creates a cache service. A nil client yields a cache that always misses.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return ErrMiss
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func userKey(userID uint64) string {
	return PrefixUser + strconv.FormatUint(userID, 10)
}

func (c *redisCache) GetUser(ctx context.Context, userID uint64, dest interface{}) error {
	return c.Get(ctx, userKey(userID), dest)
}

func (c *redisCache) SetUser(ctx context.Context, userID uint64, data interface{}) error {
	return c.Set(ctx, userKey(userID), data, TTLUser)
}

func (c *redisCache) InvalidateUser(ctx context.Context, userID uint64) error {
	return c.Delete(ctx, userKey(userID))
}
