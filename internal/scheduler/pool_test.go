package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllJobs(t *testing.T) {
	pool := NewPool(3)
	pool.Start(context.Background())

	var count atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		})
		assert.NoError(t, err)
	}

	wg.Wait()
	pool.Close()

	assert.Equal(t, int32(20), count.Load())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const workers = 2

	pool := NewPool(workers)
	pool.Start(context.Background())

	var active, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := pool.Submit(context.Background(), func(ctx context.Context) {
			defer wg.Done()
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
		})
		assert.NoError(t, err)
	}

	wg.Wait()
	pool.Close()

	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestPool_SubmitAfterClose(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())
	pool.Close()

	err := pool.Submit(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_SubmitUnblocksOnContextCancel(t *testing.T) {
	pool := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Occupy the only worker, then fill the queue so the next Submit
	// has to block on the channel send.
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) {
		close(started)
		<-release
	}))
	<-started

	for i := 0; i < cap(pool.jobs); i++ {
		require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) {}))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Submit(ctx, func(ctx context.Context) {})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Submit stayed blocked after context cancellation")
	}

	close(release)
	pool.Close()
}

func TestPool_CloseUnblocksPendingSubmits(t *testing.T) {
	pool := NewPool(2)
	pool.Start(context.Background())

	// More submitters than workers plus queue slots, all racing Close.
	// None may hang and none may panic.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(context.Background(), func(ctx context.Context) {})
		}()
	}

	pool.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit stayed blocked after Close")
	}
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	pool := NewPool(1)
	pool.Start(context.Background())

	pool.Close()
	pool.Close()
}
