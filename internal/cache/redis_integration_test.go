//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediashare/internal/testinfra"
)

func TestRedisStoreTagsAndExpiry(t *testing.T) {
	client := testinfra.Redis(t)
	store := NewRedisStore(client, "test:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "GET /api/photos?", entry("list"), time.Minute, 0, TagPhotos))
	require.NoError(t, store.Set(ctx, "GET /api/search?q=x", entry("search"), time.Minute, 0, TagSearch))

	got, ok, err := store.Get(ctx, "GET /api/photos?")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "list", string(got.Body))

	require.NoError(t, store.Invalidate(ctx, TagPhotos))
	_, ok, err = store.Get(ctx, "GET /api/photos?")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, "GET /api/search?q=x")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "test:entry:GET /api/search?q=x").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStoreInvalidationIsAtomicWithFill(t *testing.T) {
	client := testinfra.Redis(t)
	store := NewRedisStore(client, "atomic:")
	ctx := context.Background()

	gen, err := store.Generation(ctx, TagPhotos)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "first", entry("1"), time.Minute, gen, TagPhotos))

	require.NoError(t, store.Invalidate(ctx, TagPhotos))
	assert.ErrorIs(t, store.Set(ctx, "late", entry("2"), time.Minute, gen, TagPhotos), ErrStale)
	_, ok, err := store.Get(ctx, "late")
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := client.Exists(ctx, "atomic:tag:"+TagPhotos, "atomic:entry:first").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	next, err := store.Generation(ctx, TagPhotos)
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)
	require.NoError(t, store.Set(ctx, "fresh", entry("3"), time.Minute, next, TagPhotos))

	members, err := client.SMembers(ctx, "atomic:tag:"+TagPhotos).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"atomic:entry:fresh"}, members)
}
