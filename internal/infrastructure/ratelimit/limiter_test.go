package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/finbank/backend/internal/infrastructure/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T) (*ratelimit.Limiter, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Now())
	store := cache.NewMemoryStore(clk)
	return ratelimit.NewLimiter(store, nil), clk
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	// Calls 1-3 are allowed, call 4 is blocked
	for i := 1; i <= 3; i++ {
		allowed, err := limiter.Allow(ctx, "client1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := limiter.Allow(ctx, "client1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_SeparateKeys(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "clientA", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, err = limiter.Allow(ctx, "clientA", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// clientB has its own window
	allowed, err = limiter.Allow(ctx, "clientB", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_FixedWindow(t *testing.T) {
	limiter, clk := newLimiter(t)
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "client1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	// Later requests in the window must not push the expiry out
	clk.Advance(50 * time.Second)
	_, err = limiter.Allow(ctx, "client1", 2, time.Minute)
	require.NoError(t, err)

	// 11 seconds later the original window has elapsed and the counter
	// starts over, even though the second request was only recent
	clk.Advance(11 * time.Second)
	for i := 0; i < 2; i++ {
		allowed, err = limiter.Allow(ctx, "client1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err = limiter.Allow(ctx, "client1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiter_Remaining(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "fresh", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)

	for i := 0; i < 2; i++ {
		_, err = limiter.Allow(ctx, "fresh", 3, time.Minute)
		require.NoError(t, err)
	}

	remaining, err = limiter.Remaining(ctx, "fresh", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	// Never negative, even past the limit
	for i := 0; i < 5; i++ {
		_, err = limiter.Allow(ctx, "fresh", 3, time.Minute)
		require.NoError(t, err)
	}
	remaining, err = limiter.Remaining(ctx, "fresh", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestLimiter_Reset(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, "client1", 3, time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, limiter.Reset(ctx, "client1"))

	allowed, err := limiter.Allow(ctx, "client1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiter_ConcurrentCounting(t *testing.T) {
	limiter, _ := newLimiter(t)
	ctx := context.Background()

	const total = 100
	const max = 40

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.Allow(ctx, "shared", max, time.Minute)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, allowed)
}
