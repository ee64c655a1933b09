// Package cache provides a Redis-backed result cache keyed by the SHA-256 of
// the uploaded file's bytes. A byte-identical upload skips conversion and
// classification entirely.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mcortz/meshlens/internal/models"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type Cache struct {
	config Config
	client *redis.Client
	logger *zap.Logger
}

func NewWithConfig(config Config, logger *zap.Logger) (*Cache, error) {
	if config.TTL == 0 {
		config.TTL = time.Hour
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &Cache{config: config, client: client, logger: logger}, nil
}

// Get returns the cached result for key, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*models.Result, error) {
	data, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %v", err)
	}

	var res models.Result
	if err := json.Unmarshal(data, &res); err != nil {
		// A corrupt entry is treated as a miss; it will be overwritten.
		c.logger.Warn("dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &res, nil
}

func (c *Cache) Set(ctx context.Context, key string, res *models.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %v", err)
	}
	if err := c.client.Set(ctx, cacheKey(key), data, c.config.TTL).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %v", err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func cacheKey(key string) string {
	return "meshlens:result:" + key
}
