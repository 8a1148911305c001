// File: dispatcher/types.go
// Author: momentics <momentics@gmail.com>
//
// Registration parameters, hook contract and loop logic contract.

package dispatcher

import (
	"sort"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/reactor"
)

// ID identifies a registration. Zero is never issued.
type ID uint32

// NoID is returned when a registration fails.
const NoID ID = 0

// Direction selects the readiness a registration waits for.
type Direction uint8

const (
	Read Direction = iota
	Write
)

// String returns "rd" or "wr".
func (d Direction) String() string {
	if d == Write {
		return "wr"
	}
	return "rd"
}

func (d Direction) events() reactor.Events {
	if d == Write {
		return reactor.EventWrite
	}
	return reactor.EventRead
}

// EventParams are the per-registration parameters handed to the hook.
type EventParams struct {
	Type Direction
	Prio uint8
	User api.User
}

// Cmd is the hook's verdict after a notification.
//
// Continue is the zero value, so a hook returning Return{} keeps its
// registration and its current hook. A hook that wants a one-shot
// registration must return RemoveEvent explicitly.
type Cmd int

const (
	// Continue keeps the registration, optionally swapping its hook. It is
	// the zero Cmd.
	Continue Cmd = iota
	// RemoveEvent deregisters the registration now.
	RemoveEvent
	// QuitEventLoop stops delivery and returns from the event loop.
	QuitEventLoop
)

// String returns a snake_case name used in logs and metric labels.
func (c Cmd) String() string {
	switch c {
	case Continue:
		return "continue"
	case RemoveEvent:
		return "remove_event"
	case QuitEventLoop:
		return "quit_event_loop"
	}
	return "unknown"
}

// Return is a hook's result. With Cmd Continue, a non-nil Hook replaces the
// current one for later notifications. The zero Return{} is Continue with
// the current hook kept.
type Return struct {
	Cmd  Cmd
	Hook Hook
}

// Hook is notified when its descriptor is ready.
type Hook interface {
	Name() string
	NotifyEvent(fd int, params *EventParams) Return
}

// HookFunc adapts a function to Hook.
type HookFunc func(fd int, params *EventParams) Return

// Name implements Hook.
func (f HookFunc) Name() string { return "func" }

// NotifyEvent calls f.
func (f HookFunc) NotifyEvent(fd int, params *EventParams) Return { return f(fd, params) }

type namedHook struct {
	name string
	fn   HookFunc
}

func (h namedHook) Name() string { return h.name }

func (h namedHook) NotifyEvent(fd int, params *EventParams) Return { return h.fn(fd, params) }

// NamedHook wraps fn with a display name.
func NamedHook(name string, fn HookFunc) Hook { return namedHook{name: name, fn: fn} }

// DrainHook returns a hook that calls drain on every notification and keeps
// the registration while drain succeeds. A failing drain removes it.
func DrainHook(name string, drain func() error) Hook {
	return NamedHook(name, func(int, *EventParams) Return {
		if err := drain(); err != nil {
			return Return{Cmd: RemoveEvent}
		}
		return Return{Cmd: Continue}
	})
}

// EventInfo describes one registration.
type EventInfo struct {
	ID     ID
	Fd     int
	Hook   Hook
	Params EventParams
	// Ready is the readiness reported by the last wait; only set for
	// entries of a ready batch.
	Ready reactor.Events

	reg *registration
}

// Logic is consulted by the event loop.
type Logic interface {
	// MayReorderEvents may reorder batch in place before delivery.
	MayReorderEvents(batch []EventInfo)
	// NotifyEventRemove is called for every removed registration.
	NotifyEventRemove(info EventInfo)
	// NotifyTimeout is called when a wait expired; true ends the loop.
	NotifyTimeout(d time.Duration) (quit bool)
	// NotifyError is called when the multiplexer failed; true ends the loop.
	NotifyError(err error) (quit bool)
}

// DefaultLogic keeps the delivery order, ignores removals and ends the loop
// on timeout and on error. Embed it to override single methods.
type DefaultLogic struct{}

func (DefaultLogic) MayReorderEvents([]EventInfo) {}

func (DefaultLogic) NotifyEventRemove(EventInfo) {}

func (DefaultLogic) NotifyTimeout(time.Duration) bool { return true }

func (DefaultLogic) NotifyError(error) bool { return true }

// PriorityLogic delivers higher Prio registrations first, keeping the
// multiplexer order among equal priorities.
type PriorityLogic struct {
	DefaultLogic
}

// MayReorderEvents sorts batch by descending priority.
func (PriorityLogic) MayReorderEvents(batch []EventInfo) {
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Params.Prio > batch[j].Params.Prio
	})
}
