// File: event/processor.go
// Author: momentics <momentics@gmail.com>
//
// Counting semaphore processor. Posts add to the descriptor counter; each
// Process iteration takes and resets the accumulated count. There is no
// user-level lock: the kernel counter's read and write are atomic.

package event

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/concurrency"
)

var (
	_ api.Pollable  = (*Processor)(nil)
	_ api.Validator = (*Processor)(nil)
	_ api.Validator = (*Client)(nil)
)

// Logic receives accumulated counts.
type Logic interface {
	AsyncProcess(count api.Count)
}

// LogicFunc adapts a function to Logic.
type LogicFunc func(count api.Count)

// AsyncProcess calls f.
func (f LogicFunc) AsyncProcess(count api.Count) { f(count) }

// Processor owns the counting descriptor.
type Processor struct {
	settings control.Settings
	fd       *concurrency.EventFD
	closed   atomic.Bool
}

// New creates a counting event processor.
func New(opts ...control.Option) (*Processor, error) {
	settings, err := control.Resolve("event", opts)
	if err != nil {
		return nil, err
	}
	fd, err := concurrency.NewEventFD()
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", settings.Name, err)
	}
	settings.Logger.Debug().Str("processor", settings.Name).Int("fd", fd.Fd()).Log("event processor created")
	return &Processor{settings: settings, fd: fd}, nil
}

// Valid reports whether the processor is usable.
func (p *Processor) Valid() bool { return p != nil && !p.closed.Load() }

// Name returns the configured instance name.
func (p *Processor) Name() string { return p.settings.Name }

// Descriptor returns the pollable descriptor.
func (p *Processor) Descriptor() int { return p.fd.Fd() }

// MakeClient returns a poster handle tagged with user.
func (p *Processor) MakeClient(user api.User) *Client {
	return &Client{p: p, user: user}
}

// Process delivers up to max accumulated counts, blocking until the counter
// is non-zero for each.
func (p *Processor) Process(logic Logic, max int) error {
	if !p.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if logic == nil || max < 1 {
		return fmt.Errorf("event %s process: %w", p.settings.Name, api.ErrInvalidArgument)
	}
	for i := 0; i < max; i++ {
		n, err := p.fd.Read()
		if err != nil {
			return fmt.Errorf("event %s: %w", p.settings.Name, err)
		}
		p.settings.Metrics.RecordDelivered(p.settings.Name)
		logic.AsyncProcess(api.Count(n))
	}
	return nil
}

// Close releases the descriptor.
func (p *Processor) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.settings.Logger.Debug().Str("processor", p.settings.Name).Log("event processor closed")
	return p.fd.Close()
}

// Client posts counts. The zero Client is invalid. A Client must not
// outlive its Processor.
type Client struct {
	p    *Processor
	user api.User
}

// Valid reports whether the client is bound to a usable processor.
func (c *Client) Valid() bool { return c != nil && c.p.Valid() }

// User returns the client's tag.
func (c *Client) User() api.User { return c.user }

// Move transfers the binding to a new handle and invalidates c.
func (c *Client) Move() *Client {
	out := &Client{p: c.p, user: c.user}
	c.p = nil
	return out
}

// Post adds count to the counter and wakes the consumer.
func (c *Client) Post(count api.Count) error {
	if !c.Valid() {
		return api.ErrUsedWhileInvalid
	}
	s := c.p.settings
	if err := c.p.fd.Write(uint64(count)); err != nil {
		s.Metrics.RecordError(s.Name, api.CodeOf(err).String())
		return fmt.Errorf("event %s post: %w", s.Name, err)
	}
	s.Metrics.RecordPosted(s.Name, uint64(count))
	return nil
}
