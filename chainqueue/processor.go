// File: chainqueue/processor.go
// Author: momentics <momentics@gmail.com>
//
// Bounded multi-item producer/consumer queue. Producers acquire slots from a
// fixed pool, fill them and insert the chain; the consumer drains chains in
// FIFO order and the slots return to the pool after the logic callback.

package chainqueue

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/concurrency"
	"github.com/momentics/hioload-mt/pool"
)

var (
	_ api.Pollable  = (*Processor[int])(nil)
	_ api.Validator = (*Processor[int])(nil)
	_ api.Validator = (*Client[int])(nil)
)

// Logic receives the chains drained by Process. It runs with no processor
// lock held and may call back into the processor.
type Logic[T any] interface {
	AsyncProcess(chain pool.Chain[T])
}

// LogicFunc adapts a function to Logic.
type LogicFunc[T any] func(chain pool.Chain[T])

// AsyncProcess calls f.
func (f LogicFunc[T]) AsyncProcess(chain pool.Chain[T]) { f(chain) }

// Processor owns the slot pool, the pending FIFO and the wake-up signal.
//
// Lock order is poolMu before queueMu. poolMu guards Acquire/Release,
// queueMu guards Insert/Remove, so producers taking capacity do not contend
// with the consumer draining the queue.
type Processor[T any] struct {
	settings control.Settings

	poolMu  sync.Mutex
	queueMu sync.Mutex
	cq      *pool.ChainQueue[T]

	// exactly one of fd and cond is set
	fd   *concurrency.EventFD
	cond *concurrency.Cond

	closed atomic.Bool
}

// New creates a descriptor-signalled processor with capacity slots.
func New[T any](capacity int, opts ...control.Option) (*Processor[T], error) {
	p, err := newProcessor[T](capacity, opts)
	if err != nil {
		return nil, err
	}
	if p.fd, err = concurrency.NewEventFD(); err != nil {
		return nil, fmt.Errorf("chainqueue %s: %w", p.settings.Name, err)
	}
	p.register()
	return p, nil
}

// NewCond creates a processor signalled through a condition variable. It
// has no descriptor and cannot be registered with a dispatcher.
func NewCond[T any](capacity int, opts ...control.Option) (*Processor[T], error) {
	p, err := newProcessor[T](capacity, opts)
	if err != nil {
		return nil, err
	}
	p.cond = concurrency.NewCond(&p.queueMu)
	p.register()
	return p, nil
}

func newProcessor[T any](capacity int, opts []control.Option) (*Processor[T], error) {
	settings, err := control.Resolve("chainqueue", opts)
	if err != nil {
		return nil, err
	}
	cq, err := pool.NewChainQueue[T](capacity)
	if err != nil {
		return nil, fmt.Errorf("chainqueue %s: %w", settings.Name, err)
	}
	return &Processor[T]{settings: settings, cq: cq}, nil
}

func (p *Processor[T]) register() {
	p.settings.Probes.RegisterProbe(p.settings.Name, func() any {
		return map[string]any{
			"capacity": p.Capacity(),
			"free":     p.Free(),
			"pending":  p.Pending(),
		}
	})
	p.settings.Logger.Debug().
		Str("processor", p.settings.Name).
		Int("capacity", p.cq.Capacity()).
		Bool("descriptor", p.fd != nil).
		Log("chainqueue created")
}

// Valid reports whether the processor is usable.
func (p *Processor[T]) Valid() bool { return p != nil && !p.closed.Load() }

// Name returns the configured instance name.
func (p *Processor[T]) Name() string { return p.settings.Name }

// Descriptor returns the pollable descriptor, or -1 for the condition
// variable flavour.
func (p *Processor[T]) Descriptor() int {
	if p.fd == nil {
		return -1
	}
	return p.fd.Fd()
}

// MakeClient returns a producer handle tagged with user.
func (p *Processor[T]) MakeClient(user api.User) *Client[T] {
	return &Client[T]{p: p, user: user}
}

// Capacity returns the number of slots.
func (p *Processor[T]) Capacity() int { return p.cq.Capacity() }

// Free returns the number of slots not handed out.
func (p *Processor[T]) Free() int {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.cq.Free()
}

// Pending returns the number of chains waiting for the consumer.
func (p *Processor[T]) Pending() int {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	return p.cq.Pending()
}

// Process drains up to max chains, handing each to logic and returning its
// slots to the pool afterwards. Each iteration blocks until a chain is
// signalled.
func (p *Processor[T]) Process(logic Logic[T], max int) error {
	if !p.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if logic == nil || max < 1 {
		return fmt.Errorf("chainqueue %s process: %w", p.settings.Name, api.ErrInvalidArgument)
	}
	for i := 0; i < max; i++ {
		chain, err := p.next()
		if err != nil {
			return err
		}
		if chain.Empty() {
			continue
		}
		logic.AsyncProcess(chain)
		p.settings.Metrics.RecordDelivered(p.settings.Name)

		if err := p.release(chain); err != nil {
			// the logic released the chain itself
			p.settings.Logger.Debug().Str("processor", p.settings.Name).Err(err).Log("delivered chain already released")
		}
	}
	return nil
}

// next waits for and removes one pending chain. The descriptor flavour may
// return an empty chain when a wake-up raced with another consumer.
func (p *Processor[T]) next() (pool.Chain[T], error) {
	if p.fd != nil {
		if _, err := p.fd.Read(); err != nil {
			return pool.Chain[T]{}, fmt.Errorf("chainqueue %s: %w", p.settings.Name, err)
		}
		p.queueMu.Lock()
		defer p.queueMu.Unlock()
		chain := p.cq.Remove()
		p.settings.Metrics.RecordPending(p.settings.Name, p.cq.Pending())
		if !p.cq.IsEmpty() {
			// one wake-up per queue transition, so re-arm for the rest
			if err := p.fd.Write(1); err != nil {
				return chain, fmt.Errorf("chainqueue %s re-arm: %w", p.settings.Name, err)
			}
		}
		return chain, nil
	}

	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	for p.cq.IsEmpty() {
		if p.closed.Load() {
			return pool.Chain[T]{}, api.ErrUsedWhileInvalid
		}
		p.cond.Wait()
	}
	chain := p.cq.Remove()
	p.settings.Metrics.RecordPending(p.settings.Name, p.cq.Pending())
	return chain, nil
}

func (p *Processor[T]) acquire(n int) (pool.Chain[T], error) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.cq.Acquire(n)
}

func (p *Processor[T]) release(chain pool.Chain[T]) error {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	return p.cq.Release(chain)
}

func (p *Processor[T]) insert(chain pool.Chain[T]) error {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	wasEmpty, err := p.cq.Insert(chain)
	if err != nil {
		return err
	}
	p.settings.Metrics.RecordPending(p.settings.Name, p.cq.Pending())
	if !wasEmpty {
		return nil
	}
	if p.fd != nil {
		return p.fd.Write(1)
	}
	p.cond.Signal()
	return nil
}

// Close releases the descriptor and wakes condition variable waiters.
// Callers drain the processor first; blocked producers are not released.
func (p *Processor[T]) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.settings.Probes.UnregisterProbe(p.settings.Name)
	p.settings.Logger.Debug().Str("processor", p.settings.Name).Log("chainqueue closed")
	if p.fd != nil {
		return p.fd.Close()
	}
	p.queueMu.Lock()
	p.cond.Signal()
	p.queueMu.Unlock()
	return nil
}
