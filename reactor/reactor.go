// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness multiplexer interface.

package reactor

import (
	"errors"
	"math"
	"time"
)

// Events is a readiness interest or result mask.
type Events uint32

const (
	EventRead Events = 1 << iota
	EventWrite
	EventError
)

// String renders the mask as "r", "w", "e" flags.
func (e Events) String() string {
	b := []byte("---")
	if e&EventRead != 0 {
		b[0] = 'r'
	}
	if e&EventWrite != 0 {
		b[1] = 'w'
	}
	if e&EventError != 0 {
		b[2] = 'e'
	}
	return string(b)
}

// Ready is one readiness result. ID is the opaque value given to Add.
type Ready struct {
	ID     uint32
	Fd     int
	Events Events
}

// ErrInterrupted is returned by Wait when a signal interrupted the wait
// before any descriptor became ready. Callers retry.
var ErrInterrupted = errors.New("reactor: wait interrupted")

// Multiplexer watches many descriptors and reports the ready ones.
// Add and Remove may be called while another goroutine is inside Wait.
type Multiplexer interface {
	// Add starts watching fd for events, tagging results with id.
	Add(fd int, events Events, id uint32) error

	// Remove stops watching fd.
	Remove(fd int) error

	// Wait blocks for at most timeout (negative blocks indefinitely) and
	// fills ready. It returns the number of entries written; zero means
	// the timeout expired.
	Wait(ready []Ready, timeout time.Duration) (int, error)

	// Close releases the multiplexer.
	Close() error
}

// timeoutMillis converts a wait timeout to epoll(7)-style milliseconds,
// rounding up so a short positive timeout never turns into a busy poll.
// Timeouts past the int32 range the kernel accepts are clamped to it.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
