package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, config *RateLimitConfig) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, config, "ratelimit:test"), mr
}

func TestRedisLimiter_EnforcesWindow(t *testing.T) {
	limiter, _ := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "subject:a")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "subject:b")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	limiter, mr := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, err = limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_Remaining(t *testing.T) {
	limiter, _ := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute})
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "subject:a")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	_, err = limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)

	remaining, err = limiter.Remaining(ctx, "subject:a")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter, _ := newRedisLimiter(t, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	allowed, err := limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "subject:a"))

	allowed, err = limiter.Allow(ctx, "subject:a")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_FailsOpenOnBackendError(t *testing.T) {
	limiter, mr := newRedisLimiter(t, nil)
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "subject:a")
	assert.Error(t, err)
	assert.True(t, allowed)
}

func TestRedisLimiter_HealthCheck(t *testing.T) {
	limiter, mr := newRedisLimiter(t, nil)
	assert.NoError(t, limiter.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, limiter.HealthCheck(context.Background()))
}
