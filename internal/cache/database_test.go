package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okarlsson/waitgate/internal/database/testutil"
	"github.com/okarlsson/waitgate/internal/models"
)

func TestDatabaseStoreIncrementWithTTL(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "ratelimit:wg_live_abc", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, ttl, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "ratelimit:wg_live_abc", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Independent keys keep independent counters.
	count, _, err = store.IncrementWithTTL(ctx, "ratelimit:wg_live_other", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStoreIncrementResetsExpiredWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	_, _, err := store.IncrementWithTTL(ctx, "ratelimit:stale", time.Minute)
	require.NoError(t, err)

	// Force the window into the past.
	require.NoError(t, db.Model(&models.CacheEntry{}).
		Where("key = ?", "ratelimit:stale").
		Update("expires_at", time.Now().Add(-time.Second)).Error)

	count, _, err := store.IncrementWithTTL(ctx, "ratelimit:stale", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "expired window must restart at 1")
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "magic:tok", []byte("owner@example.com"), time.Minute))

	value, found, err := store.Get(ctx, "magic:tok")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("owner@example.com"), value)

	require.NoError(t, store.Delete(ctx, "magic:tok"))

	_, found, err = store.Get(ctx, "magic:tok")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDatabaseStoreGetDropsExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "magic:old", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Get(ctx, "magic:old")
	require.NoError(t, err)
	require.False(t, found)

	var count int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Where("key = ?", "magic:old").Count(&count).Error)
	require.EqualValues(t, 0, count, "expired row should be removed on read")
}
