package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache stores JSON documents under string keys.
type Cache interface {
	// GetJSON decodes the value at key into dest and reports whether it was found.
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(cfg RedisConfig, logger *logrus.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = logrus.New()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.WithField("addr", cfg.Addr).Info("Connected to Redis cache")
	return &RedisCache{client: client, logger: logger}, nil
}

func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NoOpCache is used when Redis is not configured or unreachable.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (NoOpCache) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }

func (NoOpCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }

func (NoOpCache) Delete(context.Context, string) error { return nil }

func (NoOpCache) Close() error { return nil }

// New returns a Redis cache when addr is set and reachable, otherwise a NoOpCache.
func New(cfg RedisConfig, logger *logrus.Logger) Cache {
	if cfg.Addr == "" {
		return NewNoOpCache()
	}
	c, err := NewRedisCache(cfg, logger)
	if err != nil {
		if logger != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, cache will be disabled")
		}
		return NewNoOpCache()
	}
	return c
}
