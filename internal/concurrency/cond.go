// File: internal/concurrency/cond.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Condition variable with a bounded wait. sync.Cond has no timed wait, so
// waiters park on a channel that Signal closes and replaces.

package concurrency

import (
	"sync"
	"time"
)

// Cond is a condition variable bound to the locker L.
//
// Signal wakes every waiter; callers always re-check their predicate in a
// loop. Wait, WaitFor and Signal must be called with L held.
type Cond struct {
	L  sync.Locker
	ch chan struct{}
}

// NewCond returns a condition variable bound to l.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l, ch: make(chan struct{})}
}

// Wait releases L, blocks until signalled, and re-acquires L.
func (c *Cond) Wait() {
	ch := c.ch
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitFor is Wait bounded by d on the monotonic clock. It reports whether
// the wait expired without a signal. A non-positive d expires immediately.
func (c *Cond) WaitFor(d time.Duration) (timedOut bool) {
	if d <= 0 {
		return true
	}
	ch := c.ch
	c.L.Unlock()
	t := time.NewTimer(d)
	select {
	case <-ch:
	case <-t.C:
		timedOut = true
	}
	t.Stop()
	c.L.Lock()
	return timedOut
}

// Signal wakes all goroutines waiting on c.
func (c *Cond) Signal() {
	close(c.ch)
	c.ch = make(chan struct{})
}
