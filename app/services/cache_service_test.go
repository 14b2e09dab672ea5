package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheStore(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "pricing:calc:g1:aaaa", []byte(`{"total":"1489.05"}`), time.Minute))

		value, found, err := store.Get(ctx, "pricing:calc:g1:aaaa")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, `{"total":"1489.05"}`, string(value))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("MissIsNotAnError", func(t *testing.T) {
		store := NewMemoryCacheStore()

		value, found, err := store.Get(ctx, "pricing:calc:g1:missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, value)
	})

	t.Run("StoredBytesAreIsolated", func(t *testing.T) {
		store := NewMemoryCacheStore()

		payload := []byte("original")
		require.NoError(t, store.Set(ctx, "key", payload, time.Minute))
		payload[0] = 'X'

		value, found, err := store.Get(ctx, "key")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "original", string(value))

		// Mutating the returned slice leaves the stored entry intact
		value[0] = 'Y'
		value, _, err = store.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, "original", string(value))
	})

	t.Run("ExpiredEntryMisses", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "key", []byte("value"), 10*time.Millisecond))
		time.Sleep(30 * time.Millisecond)

		_, found, err := store.Get(ctx, "key")
		require.NoError(t, err)
		assert.False(t, found)

		// The expired entry is dropped on read
		assert.Equal(t, 0, store.Len())
	})

	t.Run("ZeroTTLNeverExpires", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "key", []byte("value"), 0))
		time.Sleep(20 * time.Millisecond)

		_, found, err := store.Get(ctx, "key")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("OverwriteReplacesValue", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "key", []byte("old"), time.Minute))
		require.NoError(t, store.Set(ctx, "key", []byte("new"), time.Minute))

		value, found, err := store.Get(ctx, "key")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "new", string(value))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("FlushPrefixDropsOnlyMatchingKeys", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "pricing:calc:g1:aaaa", []byte("a"), time.Minute))
		require.NoError(t, store.Set(ctx, "pricing:calc:g1:bbbb", []byte("b"), time.Minute))
		require.NoError(t, store.Set(ctx, "session:1234", []byte("c"), time.Minute))

		require.NoError(t, store.FlushPrefix(ctx, "pricing:calc:"))

		assert.Equal(t, 1, store.Len())
		_, found, err := store.Get(ctx, "session:1234")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("SweepDropsExpiredEntriesInBulk", func(t *testing.T) {
		store := NewMemoryCacheStore()

		require.NoError(t, store.Set(ctx, "short-a", []byte("a"), 10*time.Millisecond))
		require.NoError(t, store.Set(ctx, "short-b", []byte("b"), 10*time.Millisecond))
		require.NoError(t, store.Set(ctx, "long", []byte("c"), time.Minute))
		time.Sleep(30 * time.Millisecond)

		assert.Equal(t, 2, store.Sweep())
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, 0, store.Sweep())
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, NewMemoryCacheStore().Ping(ctx))
	})
}

func TestNoopCacheStore(t *testing.T) {
	ctx := context.Background()
	store := NewNoopCacheStore()

	require.NoError(t, store.Set(ctx, "key", []byte("value"), time.Minute))

	value, found, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)

	assert.NoError(t, store.FlushPrefix(ctx, "pricing:calc:"))
	assert.NoError(t, store.Ping(ctx))
}
