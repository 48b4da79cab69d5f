package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/finbank/backend/internal/infrastructure/auth"
	"github.com/finbank/backend/internal/infrastructure/cache"
	"github.com/finbank/backend/internal/infrastructure/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenAuthority(t *testing.T) (*auth.TokenAuthority, *cache.MemoryStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Now())
	store := cache.NewMemoryStore(clk)
	return auth.NewTokenAuthority(store, 24*time.Hour, nil), store, clk
}

func TestTokenAuthority_IssueAndValidate(t *testing.T) {
	authority, _, clk := newTokenAuthority(t)
	ctx := context.Background()

	token, err := authority.Issue(ctx, "alice@bank.example")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, authority.IsValid(ctx, token))
	assert.False(t, authority.IsValid(ctx, "unknown-token"))

	subject, found := authority.Subject(ctx, token)
	require.True(t, found)
	assert.Equal(t, "alice@bank.example", subject)

	// Expired token is invalid
	clk.Advance(25 * time.Hour)
	assert.False(t, authority.IsValid(ctx, token))
}

func TestTokenAuthority_Blacklist(t *testing.T) {
	authority, store, clk := newTokenAuthority(t)
	ctx := context.Background()

	token, err := authority.Issue(ctx, "alice@bank.example")
	require.NoError(t, err)

	// Half the lifetime has passed at blacklist time
	clk.Advance(12 * time.Hour)
	require.NoError(t, authority.Blacklist(ctx, token))

	assert.False(t, authority.IsValid(ctx, token))

	// The blacklist entry's TTL never exceeds the token's remaining TTL
	blTTL, found, err := store.TTL(ctx, "auth:blacklist:"+token)
	require.NoError(t, err)
	require.True(t, found)
	tokTTL, found, err := store.TTL(ctx, "auth:token:"+token)
	require.NoError(t, err)
	require.True(t, found)
	assert.LessOrEqual(t, blTTL, tokTTL)
}

func TestTokenAuthority_BlacklistExpiredTokenIsNoop(t *testing.T) {
	authority, store, clk := newTokenAuthority(t)
	ctx := context.Background()

	token, err := authority.Issue(ctx, "alice@bank.example")
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	require.NoError(t, authority.Blacklist(ctx, token))

	// Nothing to protect, so no blacklist entry is written
	exists, err := store.Exists(ctx, "auth:blacklist:"+token)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTokenAuthority_ExtendValidity(t *testing.T) {
	authority, _, clk := newTokenAuthority(t)
	ctx := context.Background()

	token, err := authority.Issue(ctx, "alice@bank.example")
	require.NoError(t, err)

	clk.Advance(23 * time.Hour)
	require.NoError(t, authority.ExtendValidity(ctx, token, 24*time.Hour))

	clk.Advance(2 * time.Hour)
	assert.True(t, authority.IsValid(ctx, token))

	t.Run("missing token", func(t *testing.T) {
		err := authority.ExtendValidity(ctx, "unknown-token", time.Hour)
		assert.Error(t, err)
	})

	t.Run("does not clear blacklist", func(t *testing.T) {
		tok, err := authority.Issue(ctx, "bob@bank.example")
		require.NoError(t, err)
		require.NoError(t, authority.Blacklist(ctx, tok))

		require.NoError(t, authority.ExtendValidity(ctx, tok, 24*time.Hour))
		assert.False(t, authority.IsValid(ctx, tok))
	})
}
