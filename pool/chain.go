// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-mt/api"
)

// Slot states. A slot moves free -> acquired -> queued -> delivered -> free,
// or from acquired straight back to free when the producer gives it up.
const (
	slotFree uint32 = iota
	slotAcquired
	slotQueued
	slotDelivered
)

// Slot carries one payload value. Slots belong to the ChainQueue that
// created them and are only handed out inside a Chain.
type Slot[T any] struct {
	Value T

	owner any // *ChainQueue[T], set once at construction
	state atomic.Uint32
	gen   atomic.Uint64 // acquisition that holds the slot
}

// Chain is an ordered batch of slots moved as a unit. The zero Chain is
// empty and stands for "no item". Copies of a Chain share its slots, so a
// chain handed on by Insert or Release is rejected through any copy, even
// after its slots were acquired again.
type Chain[T any] struct {
	slots []*Slot[T]
	gen   uint64
}

// Len returns the number of slots in the chain.
func (c Chain[T]) Len() int { return len(c.slots) }

// Empty reports whether the chain holds no slots.
func (c Chain[T]) Empty() bool { return len(c.slots) == 0 }

// At returns slot i.
func (c Chain[T]) At(i int) *Slot[T] { return c.slots[i] }

// Slots returns the slots in order.
func (c Chain[T]) Slots() []*Slot[T] { return c.slots }

// Values copies out the payloads in order.
func (c Chain[T]) Values() []T {
	out := make([]T, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Value
	}
	return out
}

// ChainQueue pairs a fixed pool of slots with a FIFO of pending chains.
//
// The free pool (Acquire, Release, Free) and the pending FIFO (Insert,
// Remove, Pending, IsEmpty) may be guarded by two different locks: the only
// state they share is the per-slot state, which is atomic. Neither side is
// safe for concurrent use on its own.
type ChainQueue[T any] struct {
	capacity int
	gen      uint64       // last acquisition, guarded with the free pool
	free     *queue.Queue // of *Slot[T]
	pending  *queue.Queue // of Chain[T]
}

// NewChainQueue allocates capacity slots, all free.
func NewChainQueue[T any](capacity int) (*ChainQueue[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("chain queue: %w: capacity %d", api.ErrInvalidArgument, capacity)
	}
	cq := &ChainQueue[T]{
		capacity: capacity,
		free:     queue.New(),
		pending:  queue.New(),
	}
	slots := make([]Slot[T], capacity)
	for i := range slots {
		slots[i].owner = cq
		cq.free.Add(&slots[i])
	}
	return cq, nil
}

// Acquire takes n free slots. It never blocks.
func (cq *ChainQueue[T]) Acquire(n int) (Chain[T], error) {
	if n < 1 {
		return Chain[T]{}, fmt.Errorf("chain queue acquire: %w: n %d", api.ErrInvalidArgument, n)
	}
	if n > cq.free.Length() {
		return Chain[T]{}, fmt.Errorf("chain queue acquire: %w: want %d, free %d",
			api.ErrResourceExhausted, n, cq.free.Length())
	}
	cq.gen++
	slots := make([]*Slot[T], n)
	for i := range slots {
		s := cq.free.Remove().(*Slot[T])
		s.gen.Store(cq.gen)
		s.state.Store(slotAcquired)
		slots[i] = s
	}
	return Chain[T]{slots: slots, gen: cq.gen}, nil
}

// Release returns the slots of c to the pool and clears their payloads.
// Only acquired or delivered chains of this queue are accepted. A chain
// still pending, already released or built from foreign slots is rejected
// with ErrInvalidArgument and no slot changes state.
func (cq *ChainQueue[T]) Release(c Chain[T]) error {
	if c.Empty() {
		return fmt.Errorf("chain queue release: %w: empty chain", api.ErrInvalidArgument)
	}
	prev := make([]uint32, len(c.slots))
	for i, s := range c.slots {
		switch {
		case !cq.holds(c, s):
		case s.state.CompareAndSwap(slotAcquired, slotFree):
			prev[i] = slotAcquired
			continue
		case s.state.CompareAndSwap(slotDelivered, slotFree):
			prev[i] = slotDelivered
			continue
		}
		rollback(c.slots[:i], slotFree, prev)
		return fmt.Errorf("chain queue release: %w: slot %d not held", api.ErrInvalidArgument, i)
	}
	var zero T
	for _, s := range c.slots {
		s.Value = zero
		cq.free.Add(s)
	}
	return nil
}

// Insert appends c to the pending FIFO. wasEmpty reports whether the FIFO
// was empty before the call. Every slot of c must be acquired from this
// queue: an empty chain, a chain already inserted or released, or one with
// foreign slots is rejected with ErrInvalidArgument and nothing changes.
func (cq *ChainQueue[T]) Insert(c Chain[T]) (wasEmpty bool, err error) {
	if c.Empty() {
		return false, fmt.Errorf("chain queue insert: %w: empty chain", api.ErrInvalidArgument)
	}
	prev := make([]uint32, len(c.slots))
	for i, s := range c.slots {
		if !cq.holds(c, s) || !s.state.CompareAndSwap(slotAcquired, slotQueued) {
			rollback(c.slots[:i], slotQueued, prev)
			return false, fmt.Errorf("chain queue insert: %w: slot %d not acquired", api.ErrInvalidArgument, i)
		}
		prev[i] = slotAcquired
	}
	wasEmpty = cq.pending.Length() == 0
	cq.pending.Add(c)
	return wasEmpty, nil
}

// Remove pops the oldest pending chain and hands it to the caller, who
// must Release it. An empty Chain is returned when nothing is pending.
func (cq *ChainQueue[T]) Remove() Chain[T] {
	if cq.pending.Length() == 0 {
		return Chain[T]{}
	}
	c := cq.pending.Remove().(Chain[T])
	for _, s := range c.slots {
		s.state.Store(slotDelivered)
	}
	return c
}

// IsEmpty reports whether nothing is pending.
func (cq *ChainQueue[T]) IsEmpty() bool { return cq.pending.Length() == 0 }

// Pending returns the number of pending chains.
func (cq *ChainQueue[T]) Pending() int { return cq.pending.Length() }

// Free returns the number of free slots.
func (cq *ChainQueue[T]) Free() int { return cq.free.Length() }

// Capacity returns the total number of slots.
func (cq *ChainQueue[T]) Capacity() int { return cq.capacity }

// holds reports whether s is a slot of this queue acquired for c.
func (cq *ChainQueue[T]) holds(c Chain[T], s *Slot[T]) bool {
	return s != nil && s.owner == any(cq) && s.gen.Load() == c.gen
}

// rollback undoes the transitions to state made by a rejected call.
func rollback[T any](slots []*Slot[T], state uint32, prev []uint32) {
	for i, s := range slots {
		s.state.CompareAndSwap(state, prev[i])
	}
}
