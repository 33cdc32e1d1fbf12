package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL constants
const (
	TTLUser        = 10 * time.Minute // user directory entries (rarely change)
	TTLReservation = 5 * time.Minute  // reservation context (dates, property name)
	TTLShort       = 1 * time.Minute
	TTLDefault     = 5 * time.Minute
)

// Cache key prefixes. Unread counts are intentionally never cached:
// they must always be derived from message rows.
const (
	PrefixUser        = "user:"
	PrefixReservation = "reservation:"
)

// Service Redis cache service interface
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// User directory cache
	GetUser(ctx context.Context, userID string, dest interface{}) error
	SetUser(ctx context.Context, userID string, data interface{}) error
	InvalidateUser(ctx context.Context, userID string) error

	// Reservation context cache
	GetReservation(ctx context.Context, reservationID string, dest interface{}) error
	SetReservation(ctx context.Context, reservationID string, data interface{}) error
	InvalidateReservation(ctx context.Context, reservationID string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis-backed cache implementation
type redisCache struct {
	client *redis.Client
}

// NewService creates a new cache service
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable reports whether a Redis client is configured
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping tests the Redis connection
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get reads a value from the cache
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis not available")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set stores a value in the cache
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // no Redis, silently skip
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = TTLDefault
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys from the cache
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists checks whether a key exists
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) GetUser(ctx context.Context, userID string, dest interface{}) error {
	return c.Get(ctx, PrefixUser+userID, dest)
}

func (c *redisCache) SetUser(ctx context.Context, userID string, data interface{}) error {
	return c.Set(ctx, PrefixUser+userID, data, TTLUser)
}

func (c *redisCache) InvalidateUser(ctx context.Context, userID string) error {
	return c.Delete(ctx, PrefixUser+userID)
}

func (c *redisCache) GetReservation(ctx context.Context, reservationID string, dest interface{}) error {
	return c.Get(ctx, PrefixReservation+reservationID, dest)
}

func (c *redisCache) SetReservation(ctx context.Context, reservationID string, data interface{}) error {
	return c.Set(ctx, PrefixReservation+reservationID, data, TTLReservation)
}

func (c *redisCache) InvalidateReservation(ctx context.Context, reservationID string) error {
	return c.Delete(ctx, PrefixReservation+reservationID)
}
