package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/trainbooking/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis runs an in-memory Redis so the tests need no server.
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheWithClient(client, time.Minute), mr
}

func TestRedisCache_TrainRoundTrip(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	miss, err := c.GetTrain(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, miss)

	train := &domain.Train{ID: 1, TrainNumber: "TR001", Name: "Express One", SourceStation: "New York", DestinationStation: "Washington DC", TotalSeats: 100}
	require.NoError(t, c.SetTrain(ctx, train))

	got, err := c.GetTrain(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TR001", got.TrainNumber)
	assert.Equal(t, 100, got.TotalSeats)

	mr.FastForward(2 * time.Minute)
	expired, err := c.GetTrain(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestRedisCache_TrainList(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	trains := []domain.Train{{ID: 1, TrainNumber: "TR001"}, {ID: 2, TrainNumber: "TR002"}}
	require.NoError(t, c.SetTrains(ctx, trains))

	got, err := c.GetTrains(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, c.InvalidateTrains(ctx))
	got, err = c.GetTrains(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_Idempotency(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.LookupBooking(ctx, 7, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.RememberBooking(ctx, 7, "abc", 42, time.Hour))
	// First binding wins.
	require.NoError(t, c.RememberBooking(ctx, 7, "abc", 43, time.Hour))

	id, ok, err := c.LookupBooking(ctx, 7, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok, err = c.LookupBooking(ctx, 8, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.Set(idempotencyKey(9, "bad"), "not-a-number")
	_, _, err = c.LookupBooking(ctx, 9, "bad")
	assert.Error(t, err)
}

func TestRedisCache_ErrorsWhenServerDown(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.GetTrain(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, c.Ping(context.Background()))
}
