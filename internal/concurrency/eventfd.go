// File: internal/concurrency/eventfd.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pollable counting semaphore. Writers add to a 64-bit kernel counter, a
// reader blocks until the counter is non-zero and takes it, resetting it.
// The descriptor is non-blocking and wrapped in an *os.File so blocked
// readers park on the Go runtime poller instead of an OS thread.

package concurrency

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/momentics/hioload-mt/api"
)

// EventFD is a counting semaphore that can be registered with a readiness
// multiplexer. Read and Write are safe for concurrent use.
type EventFD struct {
	fd     int
	file   *os.File
	closed atomic.Bool
}

// NewEventFD creates a semaphore with a zero counter.
func NewEventFD() (*EventFD, error) {
	fd, err := newEventFD()
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w: %w", api.ErrSetupFailure, err)
	}
	return &EventFD{
		fd:   fd,
		file: os.NewFile(uintptr(fd), "eventfd"),
	}, nil
}

// Fd returns the raw descriptor for multiplexer registration.
func (e *EventFD) Fd() int { return e.fd }

// Write adds n to the counter and marks the descriptor readable.
func (e *EventFD) Write(n uint64) error {
	if e.closed.Load() {
		return api.ErrUsedWhileInvalid
	}
	if n == 0 {
		return fmt.Errorf("eventfd write: %w: zero count", api.ErrInvalidArgument)
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], n)
	if _, err := e.file.Write(buf[:]); err != nil {
		return e.wrap("write", err)
	}
	return nil
}

// Read blocks until the counter is non-zero, then returns it and resets the
// counter to zero.
func (e *EventFD) Read() (uint64, error) {
	if e.closed.Load() {
		return 0, api.ErrUsedWhileInvalid
	}
	var buf [8]byte
	if _, err := e.file.Read(buf[:]); err != nil {
		return 0, e.wrap("read", err)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close releases the descriptor. Blocked readers return with an error.
func (e *EventFD) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.file.Close()
}

func (e *EventFD) wrap(op string, err error) error {
	if errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("eventfd %s: %w", op, api.ErrUsedWhileInvalid)
	}
	return fmt.Errorf("eventfd %s: %w", op, err)
}
