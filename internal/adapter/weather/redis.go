package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/go-redis/redis/v8"
)

// RedisCache persists series in Redis so repeated runs over the same window
// skip the archive API. Redis failures are logged and treated as misses.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr string, logger *slog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return &RedisCache{client: client, logger: logger}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (domain.WeatherSeries, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.WeatherSeries{}, false
	}
	if err != nil {
		r.logger.Warn("redis get failed", "key", key, "error", err)
		return domain.WeatherSeries{}, false
	}
	var s domain.WeatherSeries
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Warn("redis entry unreadable", "key", key, "error", err)
		return domain.WeatherSeries{}, false
	}
	return s, true
}

func (r *RedisCache) Put(ctx context.Context, key string, s domain.WeatherSeries) {
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("encode weather series failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		r.logger.Warn("redis set failed", "key", key, "error", err)
	}
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
