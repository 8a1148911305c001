// File: command/processor.go
// Author: momentics <momentics@gmail.com>
//
// Single-slot request channel. One request is outstanding at a time;
// concurrent requesters queue on the outer lock. A synchronous request
// blocks until the consumer finished Logic.Process, an asynchronous one
// blocks only until the consumer took the command.

package command

import (
	"fmt"
	"sync"
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

// Processor holds the slot, its locks and the wake-up signal.
//
// cmdMu is the outer lock and serialises requesters. mu is the inner lock
// guarding the slot fields and the conditions bound to it.
type Processor struct {
	settings control.Settings

	cmdMu sync.Mutex
	mu    sync.Mutex
	ack   *concurrency.Cond

	// exactly one of fd and req is set
	fd  *concurrency.EventFD
	req *concurrency.Cond

	// guarded by mu
	cmd     Command
	async   bool
	pending bool // stored and not yet taken by the consumer
	done    bool // synchronous processing finished
	result  error

	closed atomic.Bool
}

// New creates a descriptor-signalled processor.
func New(opts ...control.Option) (*Processor, error) {
	p, err := newProcessor(opts)
	if err != nil {
		return nil, err
	}
	if p.fd, err = concurrency.NewEventFD(); err != nil {
		return nil, fmt.Errorf("command %s: %w", p.settings.Name, err)
	}
	p.created()
	return p, nil
}

// NewCond creates a processor signalled through a request condition and an
// acknowledgement condition. It has no descriptor.
func NewCond(opts ...control.Option) (*Processor, error) {
	p, err := newProcessor(opts)
	if err != nil {
		return nil, err
	}
	p.req = concurrency.NewCond(&p.mu)
	p.created()
	return p, nil
}

func newProcessor(opts []control.Option) (*Processor, error) {
	settings, err := control.Resolve("command", opts)
	if err != nil {
		return nil, err
	}
	p := &Processor{settings: settings}
	p.ack = concurrency.NewCond(&p.mu)
	return p, nil
}

func (p *Processor) created() {
	p.settings.Probes.RegisterProbe(p.settings.Name, func() any {
		p.mu.Lock()
		defer p.mu.Unlock()
		state := map[string]any{"pending": p.pending, "async": p.async}
		if p.cmd != nil {
			state["id"] = uint64(p.cmd.ID())
		}
		return state
	})
	p.settings.Logger.Debug().
		Str("processor", p.settings.Name).
		Bool("descriptor", p.fd != nil).
		Log("command processor created")
}

// Valid reports whether the processor is usable.
func (p *Processor) Valid() bool { return p != nil && !p.closed.Load() }

// Name returns the configured instance name.
func (p *Processor) Name() string { return p.settings.Name }

// Descriptor returns the pollable descriptor, or -1 for the condition
// variable flavour.
func (p *Processor) Descriptor() int {
	if p.fd == nil {
		return -1
	}
	return p.fd.Fd()
}

// MakeClient returns a requester handle tagged with user.
func (p *Processor) MakeClient(user api.User) *Client {
	return &Client{p: p, user: user}
}

// Process handles up to max requests. Logic callbacks run without the
// inner lock held.
func (p *Processor) Process(logic Logic, max int) error {
	if !p.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if logic == nil || max < 1 {
		return fmt.Errorf("command %s process: %w", p.settings.Name, api.ErrInvalidArgument)
	}
	for i := 0; i < max; i++ {
		cmd, async, err := p.take()
		if err != nil {
			return err
		}
		if cmd == nil {
			continue
		}
		p.settings.Metrics.RecordDelivered(p.settings.Name)
		if async {
			logic.AsyncProcess(cmd)
			continue
		}
		result := logic.Process(cmd)

		p.mu.Lock()
		p.result = result
		p.done = true
		p.ack.Signal()
		p.mu.Unlock()
	}
	return nil
}

// take waits for a stored request and claims it. An asynchronous request is
// acknowledged before returning so the requester is released before the
// logic runs. A nil command means a stale descriptor signal.
func (p *Processor) take() (Command, bool, error) {
	if p.fd != nil {
		if _, err := p.fd.Read(); err != nil {
			return nil, false, fmt.Errorf("command %s: %w", p.settings.Name, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.req != nil {
		for !p.pending {
			if p.closed.Load() {
				return nil, false, api.ErrUsedWhileInvalid
			}
			p.req.Wait()
		}
	} else if !p.pending {
		return nil, false, nil
	}

	cmd, async := p.cmd, p.async
	p.pending = false
	if async {
		p.cmd = nil
		p.ack.Signal()
	}
	return cmd, async, nil
}

// submit stores cmd and wakes the consumer. It must be called with cmdMu
// held.
func (p *Processor) submit(cmd Command, async bool) error {
	p.mu.Lock()
	p.cmd = cmd
	p.async = async
	p.pending = true
	p.done = false
	p.result = nil
	if p.req != nil {
		p.req.Signal()
	}
	p.mu.Unlock()

	if p.fd == nil {
		return nil
	}
	if err := p.fd.Write(1); err != nil {
		p.mu.Lock()
		p.cmd = nil
		p.pending = false
		p.mu.Unlock()
		return fmt.Errorf("command %s: %w", p.settings.Name, err)
	}
	return nil
}

func (p *Processor) request(cmd Command) error {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	if err := p.submit(cmd, false); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.done {
		if p.closed.Load() {
			return api.ErrUsedWhileInvalid
		}
		p.ack.Wait()
	}
	err := p.result
	p.cmd = nil
	p.done = false
	p.result = nil
	return err
}

func (p *Processor) asyncRequest(cmd Command) error {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	if err := p.submit(cmd, true); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending {
		if p.closed.Load() {
			return api.ErrUsedWhileInvalid
		}
		p.ack.Wait()
	}
	return nil
}

// Close releases the descriptor and wakes every waiter. Blocked requesters
// return ErrUsedWhileInvalid; callers drain first to avoid losing commands.
func (p *Processor) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.settings.Probes.UnregisterProbe(p.settings.Name)
	p.settings.Logger.Debug().Str("processor", p.settings.Name).Log("command processor closed")

	p.mu.Lock()
	p.ack.Signal()
	if p.req != nil {
		p.req.Signal()
	}
	p.mu.Unlock()

	if p.fd != nil {
		return p.fd.Close()
	}
	return nil
}
