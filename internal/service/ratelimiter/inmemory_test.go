package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockanalysis/job-engine/internal/service/ratelimiter"
)

func TestInMemoryLimiterAllowsUpToCapacity(t *testing.T) {
	lim := ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 3, RefillRate: 1}, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _, err := lim.Allow(context.Background(), "key-a", 1)
		require.NoError(t, err)
		require.True(t, ok, "request %d should be allowed", i)
	}

	ok, retryAfter, err := lim.Allow(context.Background(), "key-a", 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Greater(t, retryAfter, time.Duration(0))
}

func TestInMemoryLimiterTracksKeysIndependently(t *testing.T) {
	lim := ratelimiter.NewInMemoryLimiter(ratelimiter.BucketConfig{Capacity: 1, RefillRate: 1}, time.Minute)

	ok, _, err := lim.Allow(context.Background(), "key-a", 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = lim.Allow(context.Background(), "key-b", 1)
	require.NoError(t, err)
	require.True(t, ok, "a different key must have its own bucket")
}
