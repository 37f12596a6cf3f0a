package admission

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
)

func TestMemoryController(t *testing.T) {
	ctx := context.Background()

	t.Run("admits up to the limit", func(t *testing.T) {
		c := NewMemoryController()

		for i := 0; i < 3; i++ {
			require.NoError(t, c.TryAcquire(ctx, "session-1", 3))
		}
		assert.Equal(t, 3, c.InFlight("session-1"))

		err := c.TryAcquire(ctx, "session-1", 3)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAdmissionDenied))
		assert.Equal(t, 3, c.InFlight("session-1"), "denied acquire must not consume a slot")
	})

	t.Run("release frees a slot", func(t *testing.T) {
		c := NewMemoryController()

		require.NoError(t, c.TryAcquire(ctx, "session-1", 1))
		assert.Error(t, c.TryAcquire(ctx, "session-1", 1))

		c.Release(ctx, "session-1")
		assert.NoError(t, c.TryAcquire(ctx, "session-1", 1))
	})

	t.Run("tracks sessions separately", func(t *testing.T) {
		c := NewMemoryController()

		require.NoError(t, c.TryAcquire(ctx, "session-a", 1))
		assert.NoError(t, c.TryAcquire(ctx, "session-b", 1))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("balanced acquire and release leaves no entry", func(t *testing.T) {
		c := NewMemoryController()

		for i := 0; i < 5; i++ {
			require.NoError(t, c.TryAcquire(ctx, "session-1", 5))
		}
		for i := 0; i < 5; i++ {
			c.Release(ctx, "session-1")
		}

		assert.Equal(t, 0, c.Len())
		assert.Equal(t, 0, c.InFlight("session-1"))
	})

	t.Run("release of untracked token is a no-op", func(t *testing.T) {
		c := NewMemoryController()

		c.Release(ctx, "never-acquired")
		assert.Equal(t, 0, c.Len())

		require.NoError(t, c.TryAcquire(ctx, "session-1", 2))
		c.Release(ctx, "session-1")
		c.Release(ctx, "session-1")
		assert.Equal(t, 0, c.Len())
		assert.NoError(t, c.TryAcquire(ctx, "session-1", 1))
	})

	t.Run("non-positive limit denies everything", func(t *testing.T) {
		c := NewMemoryController()

		assert.Error(t, c.TryAcquire(ctx, "session-1", 0))
		assert.Equal(t, 0, c.Len())
	})
}

func TestMemoryController_ConcurrentBound(t *testing.T) {
	const (
		limit      = 3
		workers    = 32
		iterations = 200
	)

	ctx := context.Background()
	c := NewMemoryController()

	var (
		current int64
		peak    int64
		wg      sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			for i := 0; i < iterations; i++ {
				if err := c.TryAcquire(ctx, "shared", limit); err != nil {
					continue
				}

				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}

				if rng.Intn(4) == 0 {
					time.Sleep(time.Duration(rng.Intn(50)) * time.Microsecond)
				}

				atomic.AddInt64(&current, -1)
				c.Release(ctx, "shared")
			}
		}(int64(w))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(limit))
	assert.Greater(t, peak, int64(0))
	assert.Equal(t, 0, c.Len(), "balanced usage must leave the map empty")
}
