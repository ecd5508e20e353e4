// Package cachex wraps go-redis with JSON helpers used by the pricing
// cache (and its cleanup job) and the matching/retry store.
package cachex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// Config controls the Redis connection.
type Config struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Cache is a thin, JSON-aware wrapper over *redis.Client.
type Cache struct {
	client *redis.Client
	config Config
}

// New dials Redis and verifies the connection with a ping.
func New(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.MaxPoolSize,
		ConnMaxIdleTime: time.Duration(cfg.ConnTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logging.Info(context.Background(), "redis connected", "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	return &Cache{client: client, config: cfg}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// Get returns "" with no error on a cache miss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		logging.Error(ctx, "redis get failed", "key", key, "error", err)
		return "", err
	}
	return val, nil
}

// GetJSON unmarshals the value at key into dest. dest is left untouched on
// a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if val == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key with the given expiration (0 means no TTL).
func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		logging.Error(ctx, "redis set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// SetJSON marshals value and stores it under key.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(data), expiration)
}

// SetNX sets key only if it doesn't exist, for lightweight locking.
func (c *Cache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, value, expiration).Result()
	if err != nil {
		logging.Error(ctx, "redis setnx failed", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

// Delete removes the given keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logging.Error(ctx, "redis delete failed", "keys", keys, "error", err)
		return err
	}
	return nil
}

// Exists reports how many of the given keys exist.
func (c *Cache) Exists(ctx context.Context, keys ...string) (int64, error) {
	count, err := c.client.Exists(ctx, keys...).Result()
	if err != nil {
		logging.Error(ctx, "redis exists failed", "keys", keys, "error", err)
		return 0, err
	}
	return count, nil
}

// TTL returns the remaining time-to-live for key.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		logging.Error(ctx, "redis ttl failed", "key", key, "error", err)
		return 0, err
	}
	return ttl, nil
}

// Expire sets a TTL on an existing key without touching its value. Used
// by the cache cleanup job to re-assert expiry on keys that predate it.
func (c *Cache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if err := c.client.Expire(ctx, key, expiration).Err(); err != nil {
		logging.Error(ctx, "redis expire failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Incr atomically increments key and returns the new value.
func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		logging.Error(ctx, "redis incr failed", "key", key, "error", err)
		return 0, err
	}
	return val, nil
}

// Keys scans for keys matching pattern without blocking the server (used by
// ListActiveTickers instead of the KEYS command).
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logging.Error(ctx, "redis scan failed", "pattern", pattern, "error", err)
		return nil, err
	}
	return out, nil
}
