// File: fake/multiplexer.go
// Author: momentics <momentics@gmail.com>
//
// Scripted readiness multiplexer for testing dispatchers without real
// descriptors.

package fake

import (
	"errors"
	"sync"
	"time"

	"github.com/momentics/hioload-mt/reactor"
)

// ErrUnknownFD is returned by Remove for a descriptor that was never added.
var ErrUnknownFD = errors.New("fake: descriptor not registered")

// Step is one scripted Wait result. Fds are reported ready with the events
// they were registered for; Err, when set, is returned instead.
type Step struct {
	Fds []int
	Err error
}

// Multiplexer implements reactor.Multiplexer from a script of Steps. Each
// Wait consumes one step; an exhausted script reports a timeout.
type Multiplexer struct {
	mu      sync.Mutex
	watched map[int]watch
	script  []Step
	closed  bool

	// FailAdd makes Add fail for the listed descriptors.
	FailAdd map[int]error

	Added   []int
	Removed []int
	Waits   []time.Duration
}

type watch struct {
	id     uint32
	events reactor.Events
}

// NewMultiplexer returns a multiplexer that will replay steps in order.
func NewMultiplexer(steps ...Step) *Multiplexer {
	return &Multiplexer{watched: make(map[int]watch), script: steps}
}

// Push appends steps to the script.
func (m *Multiplexer) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, steps...)
}

// Trigger appends a step reporting fds ready.
func (m *Multiplexer) Trigger(fds ...int) { m.Push(Step{Fds: fds}) }

// Watched reports whether fd is currently registered.
func (m *Multiplexer) Watched(fd int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watched[fd]
	return ok
}

// Closed reports whether Close was called.
func (m *Multiplexer) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Multiplexer) Add(fd int, events reactor.Events, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailAdd[fd]; err != nil {
		return err
	}
	m.watched[fd] = watch{id: id, events: events}
	m.Added = append(m.Added, fd)
	return nil
}

func (m *Multiplexer) Remove(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[fd]; !ok {
		return ErrUnknownFD
	}
	delete(m.watched, fd)
	m.Removed = append(m.Removed, fd)
	return nil
}

// Wait replays the next step. Scripted descriptors that are no longer
// watched are dropped, as the kernel would.
func (m *Multiplexer) Wait(ready []reactor.Ready, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Waits = append(m.Waits, timeout)
	if len(m.script) == 0 {
		return 0, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	if step.Err != nil {
		return 0, step.Err
	}
	n := 0
	for _, fd := range step.Fds {
		if n == len(ready) {
			break
		}
		w, ok := m.watched[fd]
		if !ok {
			continue
		}
		ready[n] = reactor.Ready{ID: w.id, Fd: fd, Events: w.events}
		n++
	}
	return n, nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
