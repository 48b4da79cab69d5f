// Package ratelimit implements a fixed-window request limiter on the
// shared cache store. The window is fixed, not sliding: the counter's
// expiry is set exactly once, by whichever caller observes the first
// increment of the window, and later increments must not refresh it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/finbank/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

const counterKeyPrefix = "rate:limit:"

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	store  cache.Store
	logger *zap.Logger
}

// NewLimiter creates a Limiter on the given store.
func NewLimiter(store cache.Store, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, logger: logger}
}

// Allow atomically counts the request and reports whether it fits
// within maxRequests for the current window.
//
// The increment and the expire are two separate store operations. If the
// process dies between them, the counter is left without an expiry and
// the window runs unbounded until reset. That narrow race is accepted
// degraded behavior; it must never corrupt the count or fail the
// request path.
func (l *Limiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error) {
	counterKey := counterKeyPrefix + key

	count, err := l.store.Increment(ctx, counterKey)
	if err != nil {
		return false, fmt.Errorf("failed to count request for %s: %w", key, err)
	}

	// Only the first increment of a window arms the expiry
	if count == 1 {
		if _, err := l.store.Expire(ctx, counterKey, window); err != nil {
			l.logger.Warn("failed to arm rate limit window",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	return count <= int64(maxRequests), nil
}

// Remaining reports how many requests are left in the current window,
// treating an absent counter as zero used.
func (l *Limiter) Remaining(ctx context.Context, key string, maxRequests int) (int, error) {
	val, found, err := l.store.Get(ctx, counterKeyPrefix+key)
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit counter for %s: %w", key, err)
	}
	if !found {
		return maxRequests, nil
	}

	var count int
	if _, err := fmt.Sscanf(val, "%d", &count); err != nil {
		return 0, fmt.Errorf("failed to parse rate limit counter for %s: %w", key, err)
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset deletes the counter, ending the window early.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if _, err := l.store.Delete(ctx, counterKeyPrefix+key); err != nil {
		return fmt.Errorf("failed to reset rate limit for %s: %w", key, err)
	}
	return nil
}
