package scheduler

import (
	"context"
	"errors"
	"sync"
)

// Job is one unit of work submitted to the Pool; each story poll runs
// as one job.
type Job func(ctx context.Context)

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs jobs on a fixed number of goroutines. Due stories beyond
// the worker count queue up instead of growing parallelism.
type Pool struct {
	jobs      chan Job
	wg        sync.WaitGroup
	workers   int
	done      chan struct{}
	closeOnce sync.Once
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		jobs:    make(chan Job, workers*2),
		workers: workers,
		done:    make(chan struct{}),
	}
}

// Start begins the worker goroutines; they drain jobs until ctx is
// done or Close is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.done:
					return
				case job := <-p.jobs:
					job(ctx)
				}
			}
		}()
	}
}

// Submit enqueues a job, blocking while the queue is full. The block is
// bounded: cancelling ctx or closing the pool unblocks the caller, so a
// full queue never wedges shutdown. Jobs still queued when the pool
// stops are dropped.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for workers to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
