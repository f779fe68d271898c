package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestInMemoryCache(t *testing.T) {
	t.Cleanup(func() {
		goleak.VerifyNone(t)
	})

	cache, err := NewInMemoryLRUCache[string](WithMaxCacheSize[string](10))
	require.NoError(t, err)
	defer cache.Stop()

	t.Run("set_and_get", func(t *testing.T) {
		cache.Set("key", "value", 1*time.Second)
		result, ok := cache.Get("key")
		require.True(t, ok)
		require.Equal(t, "value", result)
	})

	t.Run("missing_key", func(t *testing.T) {
		_, ok := cache.Get("missing")
		require.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		cache.Set("gone", "value", 0)
		cache.Delete("gone")
		_, ok := cache.Get("gone")
		require.False(t, ok)
	})

	t.Run("expired", func(t *testing.T) {
		cache.Set("short", "value", 10*time.Millisecond)
		require.Eventually(t, func() bool {
			_, ok := cache.Get("short")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("stop_multiple_times", func(t *testing.T) {
		cache.Stop()
		cache.Stop()
	})
}
