package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/trainbooking/config"
	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache holds train metadata and idempotency keys. Seat counters are
// never stored here.
type RedisCache struct {
	client   *redis.Client
	trainTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, trainTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), trainTTL)
}

func NewRedisCacheWithClient(client *redis.Client, trainTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, trainTTL: trainTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetTrain returns nil, nil on a miss.
func (c *RedisCache) GetTrain(ctx context.Context, id int64) (*domain.Train, error) {
	var t domain.Train
	ok, err := c.getJSON(ctx, trainKey(id), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (c *RedisCache) SetTrain(ctx context.Context, train *domain.Train) error {
	return c.setJSON(ctx, trainKey(train.ID), train, c.trainTTL)
}

// GetTrains returns nil, nil on a miss.
func (c *RedisCache) GetTrains(ctx context.Context) ([]domain.Train, error) {
	var trains []domain.Train
	ok, err := c.getJSON(ctx, trainsKey(), &trains)
	if err != nil || !ok {
		return nil, err
	}
	return trains, nil
}

func (c *RedisCache) SetTrains(ctx context.Context, trains []domain.Train) error {
	return c.setJSON(ctx, trainsKey(), trains, c.trainTTL)
}

func (c *RedisCache) InvalidateTrains(ctx context.Context) error {
	return c.client.Del(ctx, trainsKey()).Err()
}

// LookupBooking returns the booking id stored for a user's idempotency key.
func (c *RedisCache) LookupBooking(ctx context.Context, userID int64, key string) (int64, bool, error) {
	val, err := c.client.Get(ctx, idempotencyKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %q: %w", val, err)
	}
	return id, true, nil
}

// RememberBooking stores the booking id unless the key is already bound.
func (c *RedisCache) RememberBooking(ctx context.Context, userID int64, key string, bookingID int64, ttl time.Duration) error {
	return c.client.SetNX(ctx, idempotencyKey(userID, key), bookingID, ttl).Err()
}

func (c *RedisCache) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func trainsKey() string {
	return "cache:trains"
}

func trainKey(id int64) string {
	return fmt.Sprintf("cache:train:%d", id)
}

func idempotencyKey(userID int64, key string) string {
	return fmt.Sprintf("idem:booking:user:%d:%s", userID, key)
}
