package repositories_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/derushio/d-next-ddd-example-sub002/internal/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// windowStore mirrors the store contract the rate limiter depends on
type windowStore interface {
	Get(ctx context.Context, key string) ([]time.Time, error)
	Set(ctx context.Context, key string, timestamps []time.Time) error
	Delete(ctx context.Context, key string) error
	Range(ctx context.Context, fn func(key string) bool) error
}

func newRedisStore(t *testing.T) (*repositories.RedisWindowStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return repositories.NewRedisWindowStore(client, time.Minute), mr
}

func collectKeys(t *testing.T, s windowStore) []string {
	t.Helper()
	var keys []string
	require.NoError(t, s.Range(context.Background(), func(k string) bool {
		keys = append(keys, k)
		return true
	}))
	sort.Strings(keys)
	return keys
}

func TestWindowStores_Contract(t *testing.T) {
	redisStore, _ := newRedisStore(t)
	stores := map[string]windowStore{
		"memory": repositories.NewMemoryWindowStore(0),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.UnixMicro(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMicro())

			got, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, got)

			// duplicate timestamps must both survive
			ts := []time.Time{base, base, base.Add(time.Second)}
			require.NoError(t, store.Set(ctx, "10.0.0.1", ts))
			require.NoError(t, store.Set(ctx, "10.0.0.2", ts[:1]))

			got, err = store.Get(ctx, "10.0.0.1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.True(t, got[0].Equal(base))
			assert.True(t, got[2].Equal(base.Add(time.Second)))

			assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, collectKeys(t, store))

			require.NoError(t, store.Set(ctx, "10.0.0.2", nil))
			assert.Equal(t, []string{"10.0.0.1"}, collectKeys(t, store))

			require.NoError(t, store.Delete(ctx, "10.0.0.1"))
			assert.Empty(t, collectKeys(t, store))
		})
	}
}

func TestMemoryWindowStore_EvictsLeastRecentlyWritten(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryWindowStore(2)
	now := time.Now()

	require.NoError(t, store.Set(ctx, "a", []time.Time{now}))
	require.NoError(t, store.Set(ctx, "b", []time.Time{now}))
	require.NoError(t, store.Set(ctx, "a", []time.Time{now, now}))
	require.NoError(t, store.Set(ctx, "c", []time.Time{now}))

	assert.Equal(t, 2, store.Len())
	got, _ := store.Get(ctx, "b")
	assert.Empty(t, got, "b was written least recently")
	got, _ = store.Get(ctx, "a")
	assert.Len(t, got, 2)
}

func TestMemoryWindowStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryWindowStore(0)
	now := time.Now()

	require.NoError(t, store.Set(ctx, "k", []time.Time{now}))
	got, _ := store.Get(ctx, "k")
	got[0] = now.Add(time.Hour)

	again, _ := store.Get(ctx, "k")
	assert.True(t, again[0].Equal(now))
}

func TestMemoryWindowStore_RangeStopsEarly(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryWindowStore(0)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []time.Time{time.Now()}))
	}

	calls := 0
	require.NoError(t, store.Range(ctx, func(string) bool {
		calls++
		return false
	}))
	assert.Equal(t, 1, calls)
}

func TestRedisWindowStore_SetsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", []time.Time{time.Now()}))
	assert.Equal(t, time.Minute, mr.TTL("signin:ratelimit:k"))

	mr.FastForward(2 * time.Minute)
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
