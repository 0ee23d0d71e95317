package presence

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/worknest/messaging-api/internal/domain/presence"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, 5*time.Second, zerolog.Nop()), server
}

func TestBuildUniversalOptions(t *testing.T) {
	opts, err := buildUniversalOptions("redis://:secret@cache-1:6379/2, cache-2:6379")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache-1:6379", "cache-2:6379"}, opts.Addrs)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = buildUniversalOptions(" , ")
	assert.Error(t, err)
}

func TestDecodeEntries(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 10, 0, time.UTC)
	raw := map[string]string{
		"fresh":   `{"n":"Fresh","t":` + itoa(now.Add(-2*time.Second).UnixMilli()) + `}`,
		"stale":   `{"n":"Stale","t":` + itoa(now.Add(-6*time.Second).UnixMilli()) + `}`,
		"garbage": `not json`,
	}

	live, expired := decodeEntries(raw, now, 5*time.Second)
	require.Len(t, live, 1)
	assert.Equal(t, "fresh", live[0].UserID)
	assert.Equal(t, "Fresh", live[0].DisplayName)
	assert.ElementsMatch(t, []string{"stale", "garbage"}, expired)
}

func TestRedisStoreActiveEvictsExpired(t *testing.T) {
	ctx := context.Background()
	store, server := newRedisStore(t)
	now := time.Date(2026, 4, 1, 0, 0, 10, 0, time.UTC)

	require.NoError(t, store.Set(ctx, "chat_1", domain.Typist{UserID: "alice", DisplayName: "Alice", LastSignal: now.Add(-6 * time.Second)}))
	require.NoError(t, store.Set(ctx, "chat_1", domain.Typist{UserID: "bob", DisplayName: "Bob", LastSignal: now.Add(-time.Second)}))

	live, err := store.Active(ctx, "chat_1", now, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "bob", live[0].UserID)

	fields, err := server.HKeys(keyPrefix + "chat_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, fields)
}

func TestRedisStoreEvictSkipsRefreshedSignals(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	now := time.Date(2026, 4, 1, 0, 0, 10, 0, time.UTC)
	key := keyPrefix + "chat_1"

	require.NoError(t, store.Set(ctx, "chat_1", domain.Typist{UserID: "alice", DisplayName: "Alice", LastSignal: now.Add(-6 * time.Second)}))
	read, err := store.client.HGetAll(ctx, key).Result()
	require.NoError(t, err)

	// alice types again between the read and the eviction.
	require.NoError(t, store.Set(ctx, "chat_1", domain.Typist{UserID: "alice", DisplayName: "Alice", LastSignal: now}))

	removed, err := store.evict(ctx, key, map[string]string{"alice": read["alice"]})
	require.NoError(t, err)
	assert.Zero(t, removed)

	live, err := store.Active(ctx, "chat_1", now, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "alice", live[0].UserID)

	current, err := store.client.HGet(ctx, key, "alice").Result()
	require.NoError(t, err)
	removed, err = store.evict(ctx, key, map[string]string{"alice": current, "ghost": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
