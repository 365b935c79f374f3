package principal

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheMissReturnsNil(t *testing.T) {
	cache, _ := setupTestCache(t)

	p, err := cache.Get(context.Background(), "auth0|123")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	synced := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Set(ctx, &Principal{
		ID:          7,
		SubjectID:   "auth0|123",
		Email:       "vendor@example.com",
		Roles:       []string{"vendor"},
		Permissions: []string{"read:vendor_info"},
		LastSynced:  &synced,
	}))

	p, err := cache.Get(ctx, "auth0|123")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, []string{"vendor"}, p.Roles)
	require.NotNil(t, p.LastSynced)
	assert.True(t, p.LastSynced.Equal(synced))
}

func TestCacheEntryExpires(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &Principal{ID: 7, SubjectID: "auth0|123"}))

	mr.FastForward(2 * time.Minute)

	p, err := cache.Get(ctx, "auth0|123")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &Principal{ID: 7, SubjectID: "auth0|123"}))
	require.NoError(t, cache.Invalidate(ctx, "auth0|123"))

	p, err := cache.Get(ctx, "auth0|123")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCacheCorruptEntryDropped(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("principal:auth0|123", "{not json"))

	_, err := cache.Get(ctx, "auth0|123")
	assert.Error(t, err)

	// The corrupt entry is deleted so the next read is a clean miss
	assert.False(t, mr.Exists("principal:auth0|123"))
}
