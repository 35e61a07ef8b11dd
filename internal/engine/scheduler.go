package engine

import (
	"context"
	"sync"
	"time"
)

// scheduler runs the tasks of one connection. Cancel stops them all and
// refuses new ones; Wait blocks until every task has returned.
type scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func newScheduler(parent context.Context) *scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &scheduler{ctx: ctx, cancel: cancel}
}

// Go runs fn in a tracked goroutine. It reports false, without running fn,
// once the scheduler has been cancelled.
func (s *scheduler) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// After runs fn once d has elapsed, unless cancelled first
func (s *scheduler) After(d time.Duration, fn func(ctx context.Context)) {
	_ = s.Go(func(ctx context.Context) {
		if sleepCtx(ctx, d) {
			fn(ctx)
		}
	})
}

// Every runs fn each time d elapses until cancelled
func (s *scheduler) Every(d time.Duration, fn func(ctx context.Context)) {
	_ = s.Go(func(ctx context.Context) {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	})
}

// Cancel signals every task to stop
func (s *scheduler) Cancel() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every task has returned
func (s *scheduler) Wait() {
	s.wg.Wait()
}

// sleepCtx sleeps for d and reports whether it completed without cancellation
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
