package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("first mark succeeds, duplicate is rejected", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		first, err := store.MarkProcessed(ctx, "gateway:TBK-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, first)

		second, err := store.MarkProcessed(ctx, "gateway:TBK-001", time.Hour)
		require.NoError(t, err)
		assert.False(t, second)
	})

	t.Run("expired keys can be marked again", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		_, err := store.MarkProcessed(ctx, "gateway:TBK-001", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		again, err := store.MarkProcessed(ctx, "gateway:TBK-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, again)
	})

	t.Run("IsProcessed reflects marked keys", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		processed, err := store.IsProcessed(ctx, "gateway:TBK-001")
		require.NoError(t, err)
		assert.False(t, processed)

		_, err = store.MarkProcessed(ctx, "gateway:TBK-001", time.Hour)
		require.NoError(t, err)

		processed, err = store.IsProcessed(ctx, "gateway:TBK-001")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("concurrent marks admit exactly one winner", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		const goroutines = 20
		var wg sync.WaitGroup
		results := make(chan bool, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.MarkProcessed(ctx, "gateway:TBK-100", time.Hour)
				require.NoError(t, err)
				results <- ok
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for ok := range results {
			if ok {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
	})

	t.Run("cleanup drops expired entries", func(t *testing.T) {
		store := NewInMemoryIdempotencyStore()
		defer store.Close()

		for i := 0; i < 5; i++ {
			_, err := store.MarkProcessed(ctx, fmt.Sprintf("key-%d", i), time.Nanosecond)
			require.NoError(t, err)
		}
		time.Sleep(time.Millisecond)
		store.cleanup()
		assert.Equal(t, 0, store.Size())
	})
}
