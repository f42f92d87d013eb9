package partition

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("partition: worker pool closed")

// WorkerPool manages a fixed pool of goroutines for parallel partition
// evaluation. A fixed pool keeps goroutine count constant regardless of
// how many blocks are materialized concurrently.
type WorkerPool struct {
	numWorkers int
	workCh     chan func()
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closed     atomic.Bool
	submitMu   sync.RWMutex
}

// NewWorkerPool creates a worker pool with numWorkers goroutines.
// If numWorkers <= 0, runtime.GOMAXPROCS(0) workers are started.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	wp := &WorkerPool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2), // 2x buffer for pipelining
		stopCh:     make(chan struct{}),
	}

	wp.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go wp.worker()
	}

	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopCh:
			// Drain remaining work before exiting
			for {
				select {
				case workFunc, ok := <-wp.workCh:
					if !ok {
						return
					}
					workFunc()
				default:
					return
				}
			}
		case workFunc, ok := <-wp.workCh:
			if !ok {
				return
			}
			workFunc()
		}
	}
}

// Submit submits a task to the worker pool.
//
// The function returns immediately after enqueueing the work.
// It fails if the pool is closed or ctx is cancelled before enqueueing.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	wp.submitMu.RLock()
	defer wp.submitMu.RUnlock()

	if wp.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case wp.workCh <- task:
		return nil
	case <-wp.stopCh:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the worker pool gracefully, waiting for in-flight
// tasks to complete. Close is idempotent.
func (wp *WorkerPool) Close() {
	if !wp.closed.CompareAndSwap(false, true) {
		return
	}

	wp.submitMu.Lock()
	close(wp.stopCh)
	close(wp.workCh)
	wp.submitMu.Unlock()

	wp.wg.Wait()
}

// defaultPool is the shared pool used for block evaluation fan-out.
// It lives for the lifetime of the process.
var (
	defaultPool     *WorkerPool
	defaultPoolOnce sync.Once
)

func pool() *WorkerPool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewWorkerPool(0)
	})
	return defaultPool
}

// parEach runs fn(0..n-1) on the shared worker pool and waits for all
// invocations. The first non-nil error wins. Tasks must not themselves
// materialize blocks, or the fixed-size pool can starve.
func parEach(ctx context.Context, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}

	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		idx := i
		if err := pool().Submit(ctx, func() {
			errCh <- fn(idx)
		}); err != nil {
			// Tasks already submitted still run; collect what we can.
			errCh <- err
		}
	}

	var firstErr error
	for i := 0; i < n; i++ {
		select {
		case err := <-errCh:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return firstErr
}
