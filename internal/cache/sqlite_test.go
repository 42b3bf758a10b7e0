package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/transcribe-cli/internal/model"
)

func newTestSQLite(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()

	store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, time.Hour)

	entry := model.CacheEntry{
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Text:      "# Transcribed\n\nBody text.",
		Profile:   model.ProfileBalanced,
		Quality:   0.91,
	}
	require.NoError(t, store.Put(ctx, "tq3:abc:def:ghi", entry))

	got, err := store.Get(ctx, "tq3:abc:def:ghi")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Text, got.Text)
	assert.Equal(t, model.ProfileBalanced, got.Profile)
	assert.InDelta(t, 0.91, got.Quality, 1e-9)
}

func TestSQLiteMiss(t *testing.T) {
	store := newTestSQLite(t, time.Hour)

	got, err := store.Get(context.Background(), "tq3:missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteUpsert(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, time.Hour)

	require.NoError(t, store.Put(ctx, "key", model.CacheEntry{Text: "v1", Profile: model.ProfileEconomy, Quality: 0.6}))
	require.NoError(t, store.Put(ctx, "key", model.CacheEntry{Text: "v2", Profile: model.ProfileAccuracy, Quality: 0.9}))

	got, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, model.ProfileAccuracy, got.Profile)
}

func TestSQLiteExpiryEvictsOnRead(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t, -time.Hour)

	require.NoError(t, store.Put(ctx, "stale", model.CacheEntry{Text: "old", Profile: model.ProfileEconomy, Quality: 0.7}))

	got, err := store.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got, "expired entries read as misses")
}

func TestSQLiteDeleteExpired(t *testing.T) {
	ctx := context.Background()

	stale := newTestSQLite(t, -time.Hour)
	require.NoError(t, stale.Put(ctx, "a", model.CacheEntry{Text: "x", Profile: model.ProfileEconomy, Quality: 0.5}))
	require.NoError(t, stale.Put(ctx, "b", model.CacheEntry{Text: "y", Profile: model.ProfileEconomy, Quality: 0.5}))

	n, err := stale.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	fresh := newTestSQLite(t, time.Hour)
	require.NoError(t, fresh.Put(ctx, "c", model.CacheEntry{Text: "z", Profile: model.ProfileEconomy, Quality: 0.5}))

	n, err = fresh.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewDispatchesDriver(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, testCacheConfig(t, "sqlite"))
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.IsType(t, &SQLiteStore{}, store)
	_ = store.Close()

	store, err = New(ctx, testCacheConfig(t, ""))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	_ = store.Close()

	_, err = New(ctx, testCacheConfig(t, "etcd"))
	assert.Error(t, err)
}
