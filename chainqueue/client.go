// File: chainqueue/client.go
// Author: momentics <momentics@gmail.com>

package chainqueue

import (
	"fmt"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/pool"
)

// Client is a producer handle. The zero Client is invalid. A Client must
// not outlive its Processor.
type Client[T any] struct {
	p    *Processor[T]
	user api.User
}

// Valid reports whether the client is bound to a usable processor.
func (c *Client[T]) Valid() bool { return c != nil && c.p.Valid() }

// User returns the client's tag.
func (c *Client[T]) User() api.User { return c.user }

// Move transfers the binding to a new handle and invalidates c.
func (c *Client[T]) Move() *Client[T] {
	out := &Client[T]{p: c.p, user: c.user}
	c.p = nil
	return out
}

// Acquire takes n free slots as a chain. It fails with ErrResourceExhausted
// instead of blocking when the pool is short.
func (c *Client[T]) Acquire(n int) (pool.Chain[T], error) {
	if !c.Valid() {
		return pool.Chain[T]{}, api.ErrUsedWhileInvalid
	}
	chain, err := c.p.acquire(n)
	if err != nil {
		c.reject("acquire", err)
		return pool.Chain[T]{}, err
	}
	return chain, nil
}

// Insert queues a filled chain for the consumer. Ownership passes to the
// processor. An empty chain, or one already inserted or released through
// any copy, is rejected and the queue is left unchanged.
func (c *Client[T]) Insert(chain pool.Chain[T]) error {
	if !c.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if err := c.p.insert(chain); err != nil {
		c.reject("insert", err)
		return err
	}
	c.p.settings.Metrics.RecordPosted(c.p.settings.Name, 1)
	return nil
}

// Release returns an acquired chain that will not be inserted. A chain
// already inserted or released is rejected and the pool is unchanged.
func (c *Client[T]) Release(chain pool.Chain[T]) error {
	if !c.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if err := c.p.release(chain); err != nil {
		c.reject("release", err)
		return err
	}
	return nil
}

func (c *Client[T]) reject(op string, err error) {
	s := c.p.settings
	s.Metrics.RecordError(s.Name, api.CodeOf(err).String())
	s.Logger.Warning().
		Str("processor", s.Name).
		Int64("user", int64(c.user)).
		Err(err).
		Log(fmt.Sprintf("chainqueue %s rejected", op))
}
