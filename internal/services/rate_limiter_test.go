package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/subsignature/internal/models"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	audit := &recordingAuditor{}
	clock := newFakeClock()
	limiter := NewRateLimiter(NewMemoryCounterStore(), audit, testLogger())
	limiter.now = clock.Now
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		assert.True(t, limiter.CheckLimit(ctx, "registration", requester, 5, 300*time.Second), "call %d", i)
		clock.Advance(10 * time.Second)
	}
	assert.False(t, limiter.CheckLimit(ctx, "registration", requester, 5, 300*time.Second))
	assert.Equal(t, []models.SecurityEventKind{models.EventRateLimitExceeded}, audit.kinds())

	// denials do not extend the window
	clock.Advance(250 * time.Second)
	assert.True(t, limiter.CheckLimit(ctx, "registration", requester, 5, 300*time.Second))
}

func TestRateLimiter_KeysByActionAndIP(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryCounterStore(), &recordingAuditor{}, testLogger())
	ctx := context.Background()
	other := models.Requester{IPAddress: "198.51.100.1"}

	assert.True(t, limiter.CheckLimit(ctx, "registration", requester, 1, time.Minute))
	assert.False(t, limiter.CheckLimit(ctx, "registration", requester, 1, time.Minute))
	assert.True(t, limiter.CheckLimit(ctx, "registration", other, 1, time.Minute))
	assert.True(t, limiter.CheckLimit(ctx, "password_reset", requester, 1, time.Minute))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	audit := &recordingAuditor{}
	store := &mockCounterStore{HitFunc: func(context.Context, string, time.Duration, time.Time) (int, error) {
		return 0, errors.New("store down")
	}}
	limiter := NewRateLimiter(store, audit, testLogger())

	assert.True(t, limiter.CheckLimit(context.Background(), "registration", requester, 1, time.Minute))
	assert.Empty(t, audit.events)
}

func TestMemoryCounterStore_Sweep(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx := context.Background()
	now := time.Now()

	_, err := store.Hit(ctx, "a", time.Minute, now)
	require.NoError(t, err)
	_, err = store.Hit(ctx, "b", time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, 0, store.Sweep(now.Add(30*time.Second)))
	assert.Equal(t, 1, store.Sweep(now.Add(time.Minute)))
	assert.Equal(t, 1, store.Len())

	count, err := store.Hit(ctx, "b", time.Hour, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRedisCounterStore_Hit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisCounterStore(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := store.Hit(ctx, "registration:203.0.113.7", 5*time.Minute, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	ttl := mr.TTL("ratelimit:registration:203.0.113.7")
	assert.Equal(t, 5*time.Minute, ttl, "increments must not reset the window")

	mr.FastForward(5 * time.Minute)
	count, err := store.Hit(ctx, "registration:203.0.113.7", 5*time.Minute, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRedisCounterStore_BehindLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(NewRedisCounterStore(client), &recordingAuditor{}, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.CheckLimit(ctx, "registration", requester, 5, 900*time.Second))
	}
	assert.False(t, limiter.CheckLimit(ctx, "registration", requester, 5, 900*time.Second))
}
