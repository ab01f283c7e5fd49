package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long an operation waits for the registry lock.
const DefaultLockTimeout = 30 * time.Second

// Coordinator is the node-wide serialization primitive shared by every registry operation.
// It is a counting lock with a capacity of one and a bounded wait.
type Coordinator struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewCoordinator creates a coordinator with the given wait timeout.
// A non-positive timeout falls back to DefaultLockTimeout.
func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Coordinator{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

// Timeout returns the bounded wait applied by Acquire.
func (c *Coordinator) Timeout() time.Duration {
	return c.timeout
}

// Acquire waits up to the configured timeout for the lock. On success the returned release
// function must be called exactly once; extra calls are ignored.
func (c *Coordinator) Acquire() (release func(), ok bool) {
	return c.AcquireWithin(c.timeout)
}

// AcquireWithin is Acquire with an explicit wait bound.
func (c *Coordinator) AcquireWithin(timeout time.Duration) (release func(), ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return func() {}, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.sem.Release(1) })
	}, true
}
