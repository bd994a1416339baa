package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tlind/screentimed/internal/config"
	"github.com/tlind/screentimed/internal/storage"
)

// Gateway implements the storage.Gateway interface using Redis.
type Gateway struct {
	client *redis.Client
}

// Open creates a new Redis-backed gateway.
func Open(cfg config.RedisConfig) (*Gateway, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Gateway{client: client}, nil
}

// Get returns the blob stored under key.
func (g *Gateway) Get(ctx context.Context, key string) (string, error) {
	value, err := g.client.Get(ctx, blobKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores a blob under key.
func (g *Gateway) Set(ctx context.Context, key, value string) error {
	return g.client.Set(ctx, blobKey(key), value, 0).Err()
}

// Remove deletes the blob stored under key.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	deleted, err := g.client.Del(ctx, blobKey(key)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close closes the Redis connection.
func (g *Gateway) Close() error {
	return g.client.Close()
}

func blobKey(key string) string {
	return "screentimed:" + key
}
