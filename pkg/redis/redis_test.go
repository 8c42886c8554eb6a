package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/jhquant/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), ManualRunRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, ManualRunRateLimit.Limit, remaining)
	assert.NoError(t, limiter.Wait(context.Background(), ManualRunRateLimit))
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found, "disabled cache always misses")
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "results:standard:latest", ResultKey("standard"))
}

// integration: requires REDIS_HOST pointing at a disposable server
func liveClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping integration test")
	}

	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	client, err := New(context.Background(), config.RedisConfig{Host: host, Port: port, Enabled: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCache_RoundTrip(t *testing.T) {
	cache := NewCache(liveClient(t), fmt.Sprintf("test-%d", time.Now().UnixNano()))
	ctx := context.Background()

	type payload struct {
		Strategy string `json:"strategy"`
		Matches  int    `json:"matches"`
	}

	var got payload
	found, err := cache.Get(ctx, ResultKey("standard"), &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, ResultKey("standard"), payload{"standard", 7}, time.Minute))
	found, err = cache.Get(ctx, ResultKey("standard"), &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{"standard", 7}, got)

	require.NoError(t, cache.Delete(ctx, ResultKey("standard")))
}

func TestRateLimiter_Window(t *testing.T) {
	limiter := NewRateLimiter(liveClient(t), fmt.Sprintf("test-%d", time.Now().UnixNano()))
	cfg := RateLimitConfig{Key: "burst", Limit: 2, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, remaining, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}
