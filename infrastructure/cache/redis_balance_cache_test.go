package cache

import (
	"context"
	"testing"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*RedisBalanceCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBalanceCache(client, time.Minute), server
}

func TestRedisBalanceCache_SetGet(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "alice")
	assert.False(t, ok, "empty cache misses")

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	cache.Set(ctx, &entities.User{
		ID:              "alice",
		PracticeBalance: 900,
		RealBalance:     40,
		DailyRealSpend:  60,
		LastWagerDate:   &day,
		Version:         7,
	}, 0)

	got, ok := cache.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, int64(900), got.PracticeBalance)
	assert.Equal(t, int64(40), got.RealBalance)
	assert.Equal(t, int64(60), got.DailyRealSpend)
	require.NotNil(t, got.LastWagerDate)
	assert.True(t, day.Equal(*got.LastWagerDate))
	assert.Zero(t, got.Version, "cached views never carry a store version")
}

func TestRedisBalanceCache_TTL(t *testing.T) {
	cache, server := setupCache(t)
	ctx := context.Background()

	cache.Set(ctx, &entities.User{ID: "bob", PracticeBalance: 10}, 0)
	server.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "bob")
	assert.False(t, ok)
}

func TestRedisBalanceCache_InvalidatedByBalanceChange(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	cache.Set(ctx, &entities.User{ID: "carol", PracticeBalance: 10}, 0)
	cache.Set(ctx, &entities.User{ID: "dave", PracticeBalance: 20}, 0)

	err := cache.HandleBalanceChange(ctx, events.BalanceChangeEvent{UserID: "carol", NewBalance: 5})
	require.NoError(t, err)

	_, ok := cache.Get(ctx, "carol")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "dave")
	assert.True(t, ok, "other users stay cached")

	require.NoError(t, cache.HandleBalanceChange(ctx, events.UserCreatedEvent{UserID: "dave"}))
	_, ok = cache.Get(ctx, "dave")
	assert.True(t, ok, "unrelated events are ignored")
}

func TestRedisBalanceCache_CorruptEntryIsAMiss(t *testing.T) {
	cache, server := setupCache(t)
	ctx := context.Background()

	require.NoError(t, server.Set(keyPrefix+"erin", "{not json"))

	_, ok := cache.Get(ctx, "erin")
	assert.False(t, ok)
	assert.False(t, server.Exists(keyPrefix+"erin"), "corrupt entry is dropped")
}

func TestRedisBalanceCache_InvalidationDuringReadWins(t *testing.T) {
	cache, server := setupCache(t)
	ctx := context.Background()

	generation, ok := cache.Generation(ctx, "alice")
	require.True(t, ok)
	assert.Zero(t, generation)

	// A debit commits between the store read and the cache write
	require.NoError(t, cache.HandleBalanceChange(ctx, events.BalanceChangeEvent{UserID: "alice", NewBalance: 900}))
	cache.Set(ctx, &entities.User{ID: "alice", PracticeBalance: 1000}, generation)

	_, ok = cache.Get(ctx, "alice")
	assert.False(t, ok, "value read before the change is not cached")
	assert.False(t, server.Exists(keyPrefix+"alice"))

	generation, ok = cache.Generation(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, int64(1), generation)

	cache.Set(ctx, &entities.User{ID: "alice", PracticeBalance: 900}, generation)
	got, ok := cache.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, int64(900), got.PracticeBalance)
}

func TestRedisBalanceCache_GenerationSurvivesEntryTTL(t *testing.T) {
	cache, server := setupCache(t)
	ctx := context.Background()

	cache.Invalidate(ctx, "bob")
	server.FastForward(2 * time.Minute)

	generation, ok := cache.Generation(ctx, "bob")
	require.True(t, ok)
	assert.Equal(t, int64(1), generation)

	cache.Set(ctx, &entities.User{ID: "bob", PracticeBalance: 5}, 0)
	_, ok = cache.Get(ctx, "bob")
	assert.False(t, ok, "a generation from before the invalidation is rejected")
}
