//go:build integration

package keylock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixcore/pkg/platform/keylock"
	"pixcore/pkg/testutil/containers"
)

func TestRedisLease(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)

	t.Run("serializes work per key", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(context.Background()))
		lease := keylock.NewRedisLease(rc.Client, "test", keylock.WithPollBackoff(5*time.Millisecond))

		const goroutines = 8
		var inside, peak int
		var mu sync.Mutex
		var wg sync.WaitGroup

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := lease.Do(context.Background(), "entity-1", func(context.Context) error {
					mu.Lock()
					inside++
					if inside > peak {
						peak = inside
					}
					mu.Unlock()

					time.Sleep(10 * time.Millisecond)

					mu.Lock()
					inside--
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, peak)
	})

	t.Run("different keys run in parallel", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(context.Background()))
		lease := keylock.NewRedisLease(rc.Client, "test", keylock.WithPollBackoff(5*time.Millisecond))

		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- lease.Do(context.Background(), "entity-1", func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := lease.Do(ctx, "entity-2", func(context.Context) error { return nil })
		require.NoError(t, err)

		close(release)
		require.NoError(t, <-done)
	})

	t.Run("blocked acquire honors context cancellation", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(context.Background()))
		lease := keylock.NewRedisLease(rc.Client, "test", keylock.WithPollBackoff(5*time.Millisecond))

		started := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = lease.Do(context.Background(), "entity-1", func(context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := lease.Do(ctx, "entity-1", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
