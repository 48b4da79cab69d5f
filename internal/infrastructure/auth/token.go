package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache key prefixes shared across services by convention.
const (
	tokenKeyPrefix     = "auth:token:"
	blacklistKeyPrefix = "auth:blacklist:"
)

// DefaultTokenExpiry is the lifetime of an opaque token.
const DefaultTokenExpiry = 24 * time.Hour

// TokenAuthority issues and revokes opaque bearer tokens backed by the
// shared cache. A token is valid iff its token key exists and no
// blacklist entry shadows it. A blacklist entry's TTL is capped to the
// token's remaining lifetime, so it never outlives the token it revokes.
type TokenAuthority struct {
	store  cache.Store
	expiry time.Duration
	logger *zap.Logger
}

// NewTokenAuthority creates a TokenAuthority with the given token
// lifetime; a non-positive expiry falls back to DefaultTokenExpiry.
func NewTokenAuthority(store cache.Store, expiry time.Duration, logger *zap.Logger) *TokenAuthority {
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenAuthority{store: store, expiry: expiry, logger: logger}
}

// Issue creates a new opaque token for the subject.
func (a *TokenAuthority) Issue(ctx context.Context, subject string) (string, error) {
	token := uuid.New().String()
	if err := a.store.Set(ctx, tokenKeyPrefix+token, subject, a.expiry); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// IsValid reports whether the token key exists and is not blacklisted.
// Store errors yield false.
func (a *TokenAuthority) IsValid(ctx context.Context, token string) bool {
	exists, err := a.store.Exists(ctx, tokenKeyPrefix+token)
	if err != nil {
		a.logger.Warn("token existence check failed, treating token as invalid", zap.Error(err))
		return false
	}
	if !exists {
		return false
	}

	blacklisted, err := a.store.Exists(ctx, blacklistKeyPrefix+token)
	if err != nil {
		a.logger.Warn("token blacklist check failed, treating token as invalid", zap.Error(err))
		return false
	}
	return !blacklisted
}

// Subject resolves the subject a token was issued to.
func (a *TokenAuthority) Subject(ctx context.Context, token string) (string, bool) {
	subject, found, err := a.store.Get(ctx, tokenKeyPrefix+token)
	if err != nil {
		a.logger.Warn("token subject lookup failed", zap.Error(err))
		return "", false
	}
	return subject, found
}

// Blacklist revokes a token for the remainder of its lifetime. When the
// token key has already expired there is nothing left to protect and the
// call is a no-op.
func (a *TokenAuthority) Blacklist(ctx context.Context, token string) error {
	remaining, found, err := a.store.TTL(ctx, tokenKeyPrefix+token)
	if err != nil {
		return fmt.Errorf("failed to read token ttl: %w", err)
	}
	if !found {
		a.logger.Debug("skipping blacklist of expired token")
		return nil
	}
	if found && remaining <= 0 {
		// Key present without expiry should not happen for tokens; fall
		// back to the full configured lifetime rather than an immortal
		// blacklist entry.
		remaining = a.expiry
	}

	if err := a.store.Set(ctx, blacklistKeyPrefix+token, "1", remaining); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	return nil
}

// ExtendValidity refreshes only the token key's expiry. Blacklist state
// is deliberately untouched: extending a revoked token does not
// un-revoke it.
func (a *TokenAuthority) ExtendValidity(ctx context.Context, token string, d time.Duration) error {
	ok, err := a.store.Expire(ctx, tokenKeyPrefix+token, d)
	if err != nil {
		return fmt.Errorf("failed to extend token validity: %w", err)
	}
	if !ok {
		return fmt.Errorf("token not found: %w", ErrInvalidToken)
	}
	return nil
}
