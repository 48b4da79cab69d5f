package cache

import (
	"context"
	"time"
)

// Store is a shared key/value store with per-key expiry. It is backed by
// Redis in production and shared by every service instance, so all
// operations must be safe under concurrent callers across processes.
//
// Expiry is an explicit choice, never a side effect: Increment never
// creates or refreshes a TTL, SetNX applies its TTL only when it creates
// the key, and Expire is the single way to (re)arm expiry on an existing
// key. Callers that want "first write sets the window, later writes do
// not" compose Increment + Expire themselves.
type Store interface {
	// Get returns the value for key. The second result is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes key=value with the given TTL, replacing any existing
	// value and expiry. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX writes key=value with the given TTL only if the key does not
	// exist. Returns true if the key was created.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Increment atomically increments the integer value at key, creating
	// it at 1 if absent. The key's expiry, if any, is left untouched.
	Increment(ctx context.Context, key string) (int64, error)

	// Expire arms or refreshes the TTL on an existing key. Returns false
	// if the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Delete removes a key. Returns true if a key was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key. The second result is
	// false when the key is absent; a key with no expiry reports a zero
	// duration with true.
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}
