// Package workerpool bounds outbound I/O to a small shared set of workers and
// groups tasks so a component can cancel everything it started in one call.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

const (
	// MinWorkers is the lower bound of the pool size.
	MinWorkers = 3
	// MaxWorkers is the upper bound of the pool size.
	MaxWorkers = 5
	// DefaultWorkers is used when the configured size is zero.
	DefaultWorkers = 4
)

// Pool limits how many tasks run at once across every Group created from it.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a Pool. size is clamped to [MinWorkers, MaxWorkers]; zero selects DefaultWorkers.
func NewPool(size int) *Pool {
	switch {
	case size == 0:
		size = DefaultWorkers
	case size < MinWorkers:
		size = MinWorkers
	case size > MaxWorkers:
		size = MaxWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Do waits for a free worker, then runs fn on the calling goroutine.
// A panic inside fn is recovered and returned as an error.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker task panicked", "panic", r)
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Group is a set of tasks sharing one cancellable context.
type Group struct {
	pool   *Pool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	disposed bool
}

// NewGroup returns a Group whose context derives from parent.
func (p *Pool) NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{pool: p, ctx: ctx, cancel: cancel}
}

// Context returns the group's context. It is cancelled by Dispose.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go runs fn on a pool worker in the background.
// It reports false, without running fn, once the group has been disposed.
func (g *Group) Go(fn func(ctx context.Context)) bool {
	return g.Background(func(ctx context.Context) {
		err := g.pool.Do(ctx, func(ctx context.Context) error {
			fn(ctx)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Warn("worker task failed", "error", err)
		}
	})
}

// Background runs fn on its own goroutine without holding a worker, for tasks
// that only coordinate other pool work. It reports false once disposed.
func (g *Group) Background(fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "panic", r)
			}
		}()
		fn(g.ctx)
	}()
	return true
}

// Pool returns the pool the group schedules onto.
func (g *Group) Pool() *Pool {
	return g.pool
}

// Dispose cancels every task of the group. Only the first call has an effect;
// it reports whether this call performed the cancellation.
func (g *Group) Dispose() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return false
	}
	g.disposed = true
	g.cancel()
	return true
}

// Disposed reports whether Dispose has been called.
func (g *Group) Disposed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disposed
}

// Wait blocks until every started task has returned. Call it after Dispose.
func (g *Group) Wait() {
	g.wg.Wait()
}
