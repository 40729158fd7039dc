package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_LimitsConcurrency(t *testing.T) {
	pool := New(context.Background(), 3)

	var running, peak int32
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		pool.Go(func() {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, peak, int32(3))
	assert.Equal(t, int32(0), running)
}

func TestPool_StopsDispatchAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := New(ctx, 1)

	var executed int32
	assert.True(t, pool.Go(func() { atomic.AddInt32(&executed, 1) }))
	pool.Wait()

	cancel()
	assert.False(t, pool.Go(func() { atomic.AddInt32(&executed, 1) }))
	pool.Wait()

	assert.Equal(t, int32(1), executed)
}

func TestPool_DrainsStartedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := New(ctx, 2)

	var finished int32
	started := make(chan struct{})
	pool.Go(func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&finished, 1)
	})

	<-started
	cancel()
	pool.Wait()

	assert.Equal(t, int32(1), finished)
}

func TestNew_MinimumSize(t *testing.T) {
	pool := New(context.Background(), 0)
	done := false
	pool.Go(func() { done = true })
	pool.Wait()
	assert.True(t, done)
}
