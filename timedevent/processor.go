// File: timedevent/processor.go
// Author: momentics <momentics@gmail.com>
//
// Counting semaphore with a bounded wait. Each Process iteration either
// delivers the accumulated count or, when nothing was posted within the
// interval, reports the timeout to the logic.

package timedevent

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/concurrency"
)

var (
	_ api.Validator = (*Processor)(nil)
	_ api.Validator = (*Client)(nil)
)

// Logic receives counts and expired intervals.
type Logic interface {
	AsyncProcess(count api.Count)
	TimeoutProcess(d time.Duration)
}

// LogicFuncs adapts a pair of functions to Logic. A nil field ignores the
// corresponding calls.
type LogicFuncs struct {
	OnCount   func(count api.Count)
	OnTimeout func(d time.Duration)
}

// AsyncProcess calls OnCount.
func (l LogicFuncs) AsyncProcess(count api.Count) {
	if l.OnCount != nil {
		l.OnCount(count)
	}
}

// TimeoutProcess calls OnTimeout.
func (l LogicFuncs) TimeoutProcess(d time.Duration) {
	if l.OnTimeout != nil {
		l.OnTimeout(d)
	}
}

// Processor owns the counter and its monotonic condition variable.
type Processor struct {
	settings control.Settings

	mu     sync.Mutex
	cond   *concurrency.Cond
	cnt    api.Count
	closed bool
}

// New creates a timed event processor.
func New(opts ...control.Option) (*Processor, error) {
	settings, err := control.Resolve("timedevent", opts)
	if err != nil {
		return nil, err
	}
	p := &Processor{settings: settings}
	p.cond = concurrency.NewCond(&p.mu)
	settings.Probes.RegisterProbe(settings.Name, func() any {
		return map[string]any{"count": uint64(p.Count())}
	})
	settings.Logger.Debug().Str("processor", settings.Name).Log("timedevent created")
	return p, nil
}

// Valid reports whether the processor is usable.
func (p *Processor) Valid() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Name returns the configured instance name.
func (p *Processor) Name() string { return p.settings.Name }

// MakeClient returns a poster handle tagged with user.
func (p *Processor) MakeClient(user api.User) *Client {
	return &Client{p: p, user: user}
}

// Count returns the count accumulated since the last delivery.
func (p *Processor) Count() api.Count {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cnt
}

// Process runs up to max iterations. Each waits at most d for a non-zero
// count; a count delivers through AsyncProcess and resets the counter, an
// expired wait calls TimeoutProcess(d) once.
func (p *Processor) Process(logic Logic, d time.Duration, max int) error {
	return p.run(logic, d, max, false)
}

// ResetThenProcess is Process, except that the counter is zeroed at the
// start of every iteration, discarding posts made while nobody waited.
func (p *Processor) ResetThenProcess(logic Logic, d time.Duration, max int) error {
	return p.run(logic, d, max, true)
}

func (p *Processor) run(logic Logic, d time.Duration, max int, reset bool) error {
	if !p.Valid() {
		return api.ErrUsedWhileInvalid
	}
	if logic == nil || max < 1 || d <= 0 {
		return fmt.Errorf("timedevent %s process: %w", p.settings.Name, api.ErrInvalidArgument)
	}
	for i := 0; i < max; i++ {
		n, err := p.wait(d, reset)
		if err != nil {
			return err
		}
		if n > 0 {
			p.settings.Metrics.RecordDelivered(p.settings.Name)
			logic.AsyncProcess(n)
			continue
		}
		p.settings.Metrics.RecordTimeout(p.settings.Name)
		logic.TimeoutProcess(d)
	}
	return nil
}

// wait returns the taken count, or zero when d elapsed without a post.
func (p *Processor) wait(d time.Duration, reset bool) (api.Count, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if reset {
		p.cnt = 0
	}
	deadline := time.Now().Add(d)
	for p.cnt == 0 {
		if p.closed {
			return 0, api.ErrUsedWhileInvalid
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		p.cond.WaitFor(remaining)
	}
	n := p.cnt
	p.cnt = 0
	return n, nil
}

func (p *Processor) post(count api.Count) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrUsedWhileInvalid
	}
	signal := p.cnt == 0
	p.cnt += count
	if signal {
		p.cond.Signal()
	}
	return nil
}

// Close wakes any waiter; later calls return ErrUsedWhileInvalid.
func (p *Processor) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cond.Signal()
	p.settings.Probes.UnregisterProbe(p.settings.Name)
	p.settings.Logger.Debug().Str("processor", p.settings.Name).Log("timedevent closed")
	return nil
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

// Post adds count to the counter, waking the consumer on a transition from
// zero.
func (c *Client) Post(count api.Count) error {
	if c == nil || c.p == nil {
		return api.ErrUsedWhileInvalid
	}
	s := c.p.settings
	if count == 0 {
		s.Metrics.RecordError(s.Name, api.ErrCodeInvalidArgument.String())
		return fmt.Errorf("timedevent %s post: %w: zero count", s.Name, api.ErrInvalidArgument)
	}
	if err := c.p.post(count); err != nil {
		return err
	}
	s.Metrics.RecordPosted(s.Name, uint64(count))
	return nil
}
