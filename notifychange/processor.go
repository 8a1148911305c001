// File: notifychange/processor.go
// Author: momentics <momentics@gmail.com>
//
// Coalescing single-slot mailbox. A post stores its value only if it
// differs from the current one; the consumer sees the latest distinct value,
// never a backlog.

package notifychange

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/concurrency"
)

var (
	_ api.Pollable  = (*Processor[int])(nil)
	_ api.Validator = (*Processor[int])(nil)
	_ api.Validator = (*Client[int])(nil)
)

// Logic receives the latest value and the tag of the client that posted it.
type Logic[T comparable] interface {
	Process(user api.User, value T)
}

// LogicFunc adapts a function to Logic.
type LogicFunc[T comparable] func(user api.User, value T)

// Process calls f.
func (f LogicFunc[T]) Process(user api.User, value T) { f(user, value) }

// Processor owns the mailbox slot.
type Processor[T comparable] struct {
	settings control.Settings

	mu      sync.Mutex
	user    api.User
	value   T
	changed bool

	// exactly one of fd and cond is set
	fd   *concurrency.EventFD
	cond *concurrency.Cond

	closed atomic.Bool
}

// New creates a descriptor-signalled mailbox holding initial.
func New[T comparable](initial T, opts ...control.Option) (*Processor[T], error) {
	p, err := newProcessor(initial, opts)
	if err != nil {
		return nil, err
	}
	if p.fd, err = concurrency.NewEventFD(); err != nil {
		return nil, fmt.Errorf("notifychange %s: %w", p.settings.Name, err)
	}
	p.created()
	return p, nil
}

// NewCond creates a mailbox signalled through a condition variable.
func NewCond[T comparable](initial T, opts ...control.Option) (*Processor[T], error) {
	p, err := newProcessor(initial, opts)
	if err != nil {
		return nil, err
	}
	p.cond = concurrency.NewCond(&p.mu)
	p.created()
	return p, nil
}

func newProcessor[T comparable](initial T, opts []control.Option) (*Processor[T], error) {
	settings, err := control.Resolve("notifychange", opts)
	if err != nil {
		return nil, err
	}
	return &Processor[T]{settings: settings, value: initial}, nil
}

func (p *Processor[T]) created() {
	p.settings.Probes.RegisterProbe(p.settings.Name, func() any {
		user, value := p.Value()
		return map[string]any{"user": int64(user), "value": value}
	})
	p.settings.Logger.Debug().
		Str("processor", p.settings.Name).
		Bool("descriptor", p.fd != nil).
		Log("notifychange created")
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

// MakeClient returns a poster handle tagged with user.
func (p *Processor[T]) MakeClient(user api.User) *Client[T] {
	return &Client[T]{p: p, user: user}
}

// Value returns the current value and the tag of its poster.
func (p *Processor[T]) Value() (api.User, T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user, p.value
}

// Process delivers up to max changes. Each iteration waits for a change,
// takes it and delivers it with the lock released.
func (p *Processor[T]) Process(logic Logic[T], max int) error {
	if !p.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if logic == nil || max < 1 {
		return fmt.Errorf("notifychange %s process: %w", p.settings.Name, api.ErrInvalidArgument)
	}
	for i := 0; i < max; i++ {
		user, value, ok, err := p.take()
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		p.settings.Metrics.RecordDelivered(p.settings.Name)
		logic.Process(user, value)
	}
	return nil
}

func (p *Processor[T]) take() (api.User, T, bool, error) {
	var zero T
	if p.fd != nil {
		if _, err := p.fd.Read(); err != nil {
			return 0, zero, false, fmt.Errorf("notifychange %s: %w", p.settings.Name, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cond != nil {
		for !p.changed {
			if p.closed.Load() {
				return 0, zero, false, api.ErrUsedWhileInvalid
			}
			p.cond.Wait()
		}
	} else if !p.changed {
		return 0, zero, false, nil
	}
	p.changed = false
	return p.user, p.value, true, nil
}

func (p *Processor[T]) post(user api.User, value T) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if value == p.value {
		return false, nil
	}
	if p.changed {
		// the consumer has not taken the previous change yet, and will
		// pick this one up instead
		p.user, p.value = user, value
		return true, nil
	}
	if p.fd != nil {
		if err := p.fd.Write(1); err != nil {
			return false, err
		}
	}
	p.user, p.value = user, value
	p.changed = true
	if p.fd != nil {
		return true, nil
	}
	p.cond.Signal()
	return true, nil
}

// Close releases the descriptor and wakes condition variable waiters.
func (p *Processor[T]) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.settings.Probes.UnregisterProbe(p.settings.Name)
	p.settings.Logger.Debug().Str("processor", p.settings.Name).Log("notifychange closed")
	if p.fd != nil {
		return p.fd.Close()
	}
	p.mu.Lock()
	p.cond.Signal()
	p.mu.Unlock()
	return nil
}

// Client posts values. The zero Client is invalid. A Client must not
// outlive its Processor.
type Client[T comparable] struct {
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

// Post replaces the current value if value differs from it, tagging it with
// the client's user. It reports whether a change was recorded.
func (c *Client[T]) Post(value T) (bool, error) {
	if !c.Valid() {
		return false, api.ErrUsedWhileInvalid
	}
	s := c.p.settings
	changed, err := c.p.post(c.user, value)
	switch {
	case err != nil:
		s.Metrics.RecordError(s.Name, api.CodeOf(err).String())
		return false, fmt.Errorf("notifychange %s post: %w", s.Name, err)
	case changed:
		s.Metrics.RecordPosted(s.Name, 1)
	default:
		s.Metrics.RecordCoalesced(s.Name)
	}
	return changed, nil
}
