// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import (
	"fmt"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-mt/api"
)

// FreeList is a bounded slot table handing out stable, reusable ids.
// Ids start at 1; 0 is never issued. Freed ids go to the back of a FIFO so
// an id is reissued only after every other free id has been used.
// Not safe for concurrent use.
type FreeList[T any] struct {
	slots []listSlot[T]
	free  *queue.Queue // of uint32
	live  int
}

type listSlot[T any] struct {
	val  T
	used bool
}

// NewFreeList creates a table with room for max entries.
func NewFreeList[T any](max int) (*FreeList[T], error) {
	if max < 1 {
		return nil, fmt.Errorf("freelist: %w: max %d", api.ErrInvalidArgument, max)
	}
	fl := &FreeList[T]{
		slots: make([]listSlot[T], max),
		free:  queue.New(),
	}
	for id := 1; id <= max; id++ {
		fl.free.Add(uint32(id))
	}
	return fl, nil
}

// Insert stores v and returns its id.
func (fl *FreeList[T]) Insert(v T) (uint32, error) {
	if fl.free.Length() == 0 {
		return 0, fmt.Errorf("freelist: %w: %d slots in use", api.ErrResourceExhausted, fl.live)
	}
	id := fl.free.Remove().(uint32)
	fl.slots[id-1] = listSlot[T]{val: v, used: true}
	fl.live++
	return id, nil
}

// Get returns the value stored under id.
func (fl *FreeList[T]) Get(id uint32) (T, bool) {
	if !fl.inRange(id) || !fl.slots[id-1].used {
		var zero T
		return zero, false
	}
	return fl.slots[id-1].val, true
}

// Set replaces the value of a live id.
func (fl *FreeList[T]) Set(id uint32, v T) bool {
	if !fl.inRange(id) || !fl.slots[id-1].used {
		return false
	}
	fl.slots[id-1].val = v
	return true
}

// Erase frees id. It reports whether id was live.
func (fl *FreeList[T]) Erase(id uint32) bool {
	if !fl.inRange(id) || !fl.slots[id-1].used {
		return false
	}
	fl.slots[id-1] = listSlot[T]{}
	fl.live--
	fl.free.Add(id)
	return true
}

// Each visits live entries in id order until fn returns false.
func (fl *FreeList[T]) Each(fn func(id uint32, v T) bool) {
	for i := range fl.slots {
		if fl.slots[i].used && !fn(uint32(i+1), fl.slots[i].val) {
			return
		}
	}
}

// Clear frees every live id.
func (fl *FreeList[T]) Clear() {
	for i := range fl.slots {
		if fl.slots[i].used {
			fl.Erase(uint32(i + 1))
		}
	}
}

// Len returns the number of live entries.
func (fl *FreeList[T]) Len() int { return fl.live }

// Cap returns the table size.
func (fl *FreeList[T]) Cap() int { return len(fl.slots) }

func (fl *FreeList[T]) inRange(id uint32) bool {
	return id >= 1 && int(id) <= len(fl.slots)
}
