package presence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cacheTTL = 2 * time.Second

func newTestCache(t *testing.T) (*Cache, *fakeClient, *clockwork.FakeClock) {
	t.Helper()
	store, client, clock := newTestStore(t)
	return NewCache(store, cacheTTL, clock), client, clock
}

func TestCache_ServesFreshEntryWithoutStore(t *testing.T) {
	cache, client, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.store.MarkOnline(ctx, "alice", uuid.New()))
	assert.True(t, cache.IsOnline(ctx, "alice"))

	// With the store down, the cached answer still serves.
	client.setFailing(true)
	assert.True(t, cache.IsOnline(ctx, "alice"))
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	cache, client, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.store.MarkOnline(ctx, "alice", uuid.New()))
	assert.True(t, cache.IsOnline(ctx, "alice"))

	client.setFailing(true)
	clock.Advance(cacheTTL + time.Millisecond)

	// Expired entry falls through to the store, which now fails open.
	assert.False(t, cache.IsOnline(ctx, "alice"))
}

func TestCache_InvalidateForcesRefetch(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	assert.False(t, cache.IsOnline(ctx, "alice"))

	require.NoError(t, cache.store.MarkOnline(ctx, "alice", uuid.New()))
	assert.False(t, cache.IsOnline(ctx, "alice"), "stale answer until invalidated or expired")

	cache.Invalidate("alice")
	assert.True(t, cache.IsOnline(ctx, "alice"))
}

func TestCache_EvictExpired(t *testing.T) {
	cache, _, clock := newTestCache(t)
	ctx := context.Background()

	cache.IsOnline(ctx, "alice")
	cache.IsOnline(ctx, "bob")
	assert.Equal(t, 0, cache.EvictExpired())

	clock.Advance(cacheTTL + time.Millisecond)
	assert.Equal(t, 2, cache.EvictExpired())
}
