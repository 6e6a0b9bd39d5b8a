package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(body string) Entry {
	return Entry{Status: 200, ContentType: "application/json", Body: []byte(body)}
}

func TestMemoryStoreExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	store := NewMemoryStore(clk, 10)

	require.NoError(t, store.Set(ctx, "GET /api/photos", entry(`{"a":1}`), 5*time.Minute, 0, TagPhotos))

	clk.Add(4*time.Minute + 59*time.Second)
	got, ok, err := store.Get(ctx, "GET /api/photos")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got.Body))

	clk.Add(time.Second)
	_, ok, err = store.Get(ctx, "GET /api/photos")
	require.NoError(t, err)
	assert.False(t, ok)

	stats := store.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0, stats.Keys)
}

func TestMemoryStoreInvalidateByTag(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.NewMock(), 10)

	require.NoError(t, store.Set(ctx, "list", entry("l"), time.Minute, 0, TagPhotos))
	require.NoError(t, store.Set(ctx, "search", entry("s"), time.Minute, 0, TagSearch))
	require.NoError(t, store.Set(ctx, "health", entry("h"), time.Minute, 0))

	require.NoError(t, store.Invalidate(ctx, TagPhotos))

	_, ok, _ := store.Get(ctx, "list")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "search")
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, "health")
	assert.True(t, ok)

	require.NoError(t, store.Invalidate(ctx, TagPhotos, TagSearch))
	_, ok, _ = store.Get(ctx, "search")
	assert.False(t, ok)
}

func TestMemoryStoreCapacityEvictsExpiredFirst(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	store := NewMemoryStore(clk, 2)

	require.NoError(t, store.Set(ctx, "old", entry("1"), 10*time.Minute, 0))
	require.NoError(t, store.Set(ctx, "short", entry("2"), time.Minute, 0))
	clk.Add(2 * time.Minute)

	require.NoError(t, store.Set(ctx, "new", entry("3"), 10*time.Minute, 0))

	_, ok, _ := store.Get(ctx, "old")
	assert.True(t, ok)
	_, ok, _ = store.Get(ctx, "new")
	assert.True(t, ok)
	assert.Equal(t, 2, store.Stats().Keys)
}

func TestMemoryStoreCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.NewMock(), 2)

	require.NoError(t, store.Set(ctx, "a", entry("a"), time.Minute, 0, TagPhotos))
	require.NoError(t, store.Set(ctx, "b", entry("b"), time.Minute, 0))
	require.NoError(t, store.Set(ctx, "c", entry("c"), time.Minute, 0))

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "c")
	assert.True(t, ok)

	// The evicted key no longer lingers in the tag index.
	require.NoError(t, store.Invalidate(ctx, TagPhotos))
	assert.Equal(t, 2, store.Stats().Keys)
}

func TestMemoryStoreOverwriteRefreshesTags(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.NewMock(), 10)

	require.NoError(t, store.Set(ctx, "k", entry("1"), time.Minute, 0, TagPhotos))
	require.NoError(t, store.Set(ctx, "k", entry("2"), time.Minute, 0, TagSearch))

	require.NoError(t, store.Invalidate(ctx, TagPhotos))
	got, ok, _ := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "2", string(got.Body))
}

func TestMemoryStoreRejectsFillAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(clock.NewMock(), 10)

	gen, err := store.Generation(ctx, TagPhotos, TagSearch)
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(ctx, TagSearch))
	assert.ErrorIs(t, store.Set(ctx, "stale", entry("old"), time.Minute, gen, TagPhotos, TagSearch), ErrStale)
	_, ok, _ := store.Get(ctx, "stale")
	assert.False(t, ok)

	// Untagged entries and unrelated tags are unaffected.
	require.NoError(t, store.Set(ctx, "plain", entry("p"), time.Minute, 0))
	photosGen, err := store.Generation(ctx, TagPhotos)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), photosGen)

	gen, err = store.Generation(ctx, TagPhotos, TagSearch)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	require.NoError(t, store.Set(ctx, "fresh", entry("new"), time.Minute, gen, TagPhotos, TagSearch))
	_, ok, _ = store.Get(ctx, "fresh")
	assert.True(t, ok)
}

func TestKeySortsQuery(t *testing.T) {
	a := Key("GET", "/api/photos", url.Values{"page": {"2"}, "limit": {"5"}})
	b := Key("GET", "/api/photos", url.Values{"limit": {"5"}, "page": {"2"}})
	assert.Equal(t, a, b)
	assert.Equal(t, "GET /api/photos?limit=5&page=2", a)
	assert.Equal(t, "GET /api/photos", Key("GET", "/api/photos", nil))
}
