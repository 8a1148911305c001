// File: dispatcher/dispatcher.go
// Author: momentics <momentics@gmail.com>
//
// Single-threaded readiness reactor. Registrations live in a free-list slot
// table; the slot id travels through the multiplexer so each readiness
// result maps back to its registration in O(1).

package dispatcher

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/pool"
	"github.com/momentics/hioload-mt/reactor"
)

// EpollService is the name of the epoll(7) multiplexer service.
const EpollService = "epoll_service"

// SupportedServices lists the multiplexer services New accepts.
func SupportedServices() []string { return []string{EpollService} }

// Params configures a dispatcher.
type Params struct {
	// Max bounds the number of live registrations and the ready batch.
	Max int
	// Service names the multiplexer; empty selects EpollService.
	Service string
}

type registration struct {
	id     ID
	fd     int
	hook   Hook
	params EventParams
	live   bool
}

func (r *registration) info() EventInfo {
	return EventInfo{ID: r.id, Fd: r.fd, Hook: r.hook, Params: r.params, reg: r}
}

// Dispatcher multiplexes readiness across registered descriptors and
// drives each registration's hook.
//
// The registration table is owned by the goroutine running the event loop:
// AddEvent, DelEvent and ClearEvents are called from that goroutine, either
// before the loop starts or from inside hooks. mu only guards the table
// against concurrent inspection through Show and GetEvent.
type Dispatcher struct {
	settings control.Settings
	params   Params
	logic    Logic
	mux      reactor.Multiplexer

	mu    sync.Mutex
	table *pool.FreeList[*registration]

	ready      []reactor.Ready
	batch      []EventInfo
	running    atomic.Bool
	iterations atomic.Uint64
	closed     atomic.Bool
}

// New creates a dispatcher backed by the multiplexer params.Service names.
// A nil logic uses DefaultLogic.
func New(params Params, logic Logic, opts ...control.Option) (*Dispatcher, error) {
	params, err := checkParams(params)
	if err != nil {
		return nil, err
	}
	mux, err := reactor.New()
	if err != nil {
		return nil, api.WrapError(api.ErrCodeSetupFailure, "dispatcher multiplexer", err).
			WithContext("service", params.Service)
	}
	d, err := newDispatcher(params, logic, mux, opts)
	if err != nil {
		_ = mux.Close()
		return nil, err
	}
	return d, nil
}

// NewWithMultiplexer creates a dispatcher over an existing multiplexer,
// which it takes ownership of.
func NewWithMultiplexer(params Params, logic Logic, mux reactor.Multiplexer, opts ...control.Option) (*Dispatcher, error) {
	params, err := checkParams(params)
	if err != nil {
		return nil, err
	}
	if mux == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "dispatcher: nil multiplexer")
	}
	return newDispatcher(params, logic, mux, opts)
}

func checkParams(params Params) (Params, error) {
	if params.Service == "" {
		params.Service = EpollService
	}
	if !slices.Contains(SupportedServices(), params.Service) {
		return params, api.NewError(api.ErrCodeNotSupported, "dispatcher: unknown service").
			WithContext("service", params.Service)
	}
	if params.Max < 1 {
		return params, api.NewError(api.ErrCodeInvalidArgument, "dispatcher: max must be positive").
			WithContext("max", params.Max)
	}
	return params, nil
}

func newDispatcher(params Params, logic Logic, mux reactor.Multiplexer, opts []control.Option) (*Dispatcher, error) {
	settings, err := control.Resolve("dispatcher", opts)
	if err != nil {
		return nil, err
	}
	table, err := pool.NewFreeList[*registration](params.Max)
	if err != nil {
		return nil, err
	}
	if logic == nil {
		logic = DefaultLogic{}
	}
	d := &Dispatcher{
		settings: settings,
		params:   params,
		logic:    logic,
		mux:      mux,
		table:    table,
		ready:    make([]reactor.Ready, params.Max),
		batch:    make([]EventInfo, 0, params.Max),
	}
	settings.Probes.RegisterProbe(settings.Name, func() any { return d.Show() })
	settings.Logger.Debug().
		Str("dispatcher", settings.Name).
		Str("service", params.Service).
		Int("max", params.Max).
		Log("dispatcher created")
	return d, nil
}

// Params returns the effective parameters.
func (d *Dispatcher) Params() Params { return d.params }

// Name returns the configured instance name.
func (d *Dispatcher) Name() string { return d.settings.Name }

// Iterations returns the number of completed waits across all loop runs.
func (d *Dispatcher) Iterations() uint64 { return d.iterations.Load() }

// AddEvent registers fd with hook and returns the new registration id. On
// failure the slot is released and NoID is returned.
func (d *Dispatcher) AddEvent(fd int, params EventParams, hook Hook) (ID, error) {
	if d.closed.Load() {
		return NoID, api.ErrUsedWhileInvalid
	}
	if fd < 0 || hook == nil {
		return NoID, d.fail(api.NewError(api.ErrCodeInvalidArgument, "dispatcher add event").
			WithContext("fd", fd))
	}

	reg := &registration{fd: fd, hook: hook, params: params, live: true}
	d.mu.Lock()
	id, err := d.table.Insert(reg)
	if err == nil {
		reg.id = ID(id)
	}
	d.mu.Unlock()
	if err != nil {
		return NoID, d.fail(api.WrapError(api.ErrCodeResourceExhausted, "dispatcher add event", err).
			WithContext("fd", fd))
	}

	if err := d.mux.Add(fd, params.Type.events(), id); err != nil {
		d.mu.Lock()
		reg.live = false
		d.table.Erase(id)
		d.mu.Unlock()
		return NoID, d.fail(api.WrapError(api.ErrCodeInvalidArgument, "dispatcher add event", err).
			WithContext("fd", fd).
			WithContext("hook", hook.Name()))
	}

	d.settings.Metrics.RecordRegistrations(d.settings.Name, d.Events())
	d.settings.Logger.Debug().
		Str("dispatcher", d.settings.Name).
		Uint64("id", uint64(id)).
		Int("fd", fd).
		Str("hook", hook.Name()).
		Log("event added")
	return reg.id, nil
}

// DelEvent removes a registration and returns its hook. Logic
// NotifyEventRemove runs before the slot is freed. Safe to call from inside
// any hook, including the removed registration's own.
func (d *Dispatcher) DelEvent(id ID) (Hook, error) {
	d.mu.Lock()
	reg, ok := d.table.Get(uint32(id))
	if !ok || !reg.live {
		d.mu.Unlock()
		return nil, api.NewError(api.ErrCodeNotFound, "dispatcher del event").WithContext("id", uint32(id))
	}
	reg.live = false
	d.mu.Unlock()

	if err := d.mux.Remove(reg.fd); err != nil {
		// the descriptor may already be closed, which also deregisters it
		d.settings.Logger.Warning().
			Str("dispatcher", d.settings.Name).
			Uint64("id", uint64(id)).
			Int("fd", reg.fd).
			Err(err).
			Log("multiplexer remove failed")
	}
	d.logic.NotifyEventRemove(reg.info())

	d.mu.Lock()
	d.table.Erase(uint32(id))
	d.mu.Unlock()

	d.settings.Metrics.RecordRegistrations(d.settings.Name, d.Events())
	d.settings.Logger.Debug().
		Str("dispatcher", d.settings.Name).
		Uint64("id", uint64(id)).
		Int("fd", reg.fd).
		Str("hook", reg.hook.Name()).
		Log("event removed")
	return reg.hook, nil
}

// DelEventFD removes the registration of fd.
func (d *Dispatcher) DelEventFD(fd int) (Hook, error) {
	id := NoID
	d.mu.Lock()
	d.table.Each(func(slot uint32, reg *registration) bool {
		if reg.live && reg.fd == fd {
			id = ID(slot)
			return false
		}
		return true
	})
	d.mu.Unlock()
	if id == NoID {
		return nil, api.NewError(api.ErrCodeNotFound, "dispatcher del event").WithContext("fd", fd)
	}
	return d.DelEvent(id)
}

// ClearEvents removes every registration, notifying the logic for each.
func (d *Dispatcher) ClearEvents() {
	for _, id := range d.FetchEvents() {
		_, _ = d.DelEvent(id)
	}
}

// GetEvent returns a registration by id.
func (d *Dispatcher) GetEvent(id ID) (EventInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	reg, ok := d.table.Get(uint32(id))
	if !ok || !reg.live {
		return EventInfo{}, false
	}
	return reg.info(), true
}

// FetchEvents returns the ids of all live registrations in id order.
func (d *Dispatcher) FetchEvents() []ID {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ID, 0, d.table.Len())
	d.table.Each(func(id uint32, reg *registration) bool {
		if reg.live {
			out = append(out, ID(id))
		}
		return true
	})
	return out
}

// Events returns the number of live registrations.
func (d *Dispatcher) Events() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	d.table.Each(func(_ uint32, reg *registration) bool {
		if reg.live {
			n++
		}
		return true
	})
	return n
}

// EventLoop runs until a hook or the logic asks to quit, blocking
// indefinitely in each wait. It returns the number of waits performed.
func (d *Dispatcher) EventLoop() (int, error) {
	return d.loop(-1)
}

// EventLoopTimeout is EventLoop with every wait bounded by timeout. An
// expired wait is reported to Logic.NotifyTimeout.
func (d *Dispatcher) EventLoopTimeout(timeout time.Duration) (int, error) {
	if timeout < 0 {
		timeout = -1
	}
	return d.loop(timeout)
}

func (d *Dispatcher) loop(timeout time.Duration) (int, error) {
	if d.closed.Load() {
		return 0, api.ErrUsedWhileInvalid
	}
	if !d.running.CompareAndSwap(false, true) {
		return 0, api.NewError(api.ErrCodeInvalidArgument, "dispatcher: event loop already running").
			WithContext("dispatcher", d.settings.Name)
	}
	defer d.running.Store(false)

	iterations := 0
	for {
		n, err := d.mux.Wait(d.ready, timeout)
		if errors.Is(err, reactor.ErrInterrupted) {
			continue
		}
		iterations++
		d.iterations.Add(1)
		d.settings.Metrics.RecordBatch(d.settings.Name, n)

		if err != nil {
			d.settings.Metrics.RecordError(d.settings.Name, api.ErrCodeInternal.String())
			d.settings.Logger.Err().
				Str("dispatcher", d.settings.Name).
				Err(err).
				Log("multiplexer wait failed")
			if d.logic.NotifyError(err) {
				return iterations, fmt.Errorf("dispatcher %s: %w", d.settings.Name, err)
			}
			continue
		}
		if n == 0 {
			if d.logic.NotifyTimeout(timeout) {
				return iterations, nil
			}
			continue
		}
		if d.deliver(d.snapshot(n)) {
			return iterations, nil
		}
	}
}

// snapshot maps the ready results to their registrations before any hook
// runs, so hooks may mutate the table freely.
func (d *Dispatcher) snapshot(n int) []EventInfo {
	batch := d.batch[:0]
	d.mu.Lock()
	for _, r := range d.ready[:n] {
		reg, ok := d.table.Get(r.ID)
		if !ok || !reg.live {
			continue
		}
		info := reg.info()
		info.Ready = r.Events
		batch = append(batch, info)
	}
	d.mu.Unlock()
	d.logic.MayReorderEvents(batch)
	return batch
}

// deliver notifies each registration of batch in order and reports whether
// a hook asked to quit.
func (d *Dispatcher) deliver(batch []EventInfo) (quit bool) {
	defer clear(batch)
	for _, info := range batch {
		reg := info.reg
		if reg == nil || !reg.live {
			// removed earlier in this batch
			continue
		}
		ret := reg.hook.NotifyEvent(reg.fd, &reg.params)
		d.settings.Metrics.RecordNotification(d.settings.Name, ret.Cmd.String())

		switch ret.Cmd {
		case Continue:
			if ret.Hook != nil && reg.live {
				d.mu.Lock()
				reg.hook = ret.Hook
				d.mu.Unlock()
			}
		case RemoveEvent:
			if reg.live {
				_, _ = d.DelEvent(reg.id)
			}
		case QuitEventLoop:
			return true
		}
	}
	return false
}

// Show renders the registration table.
func (d *Dispatcher) Show() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dispatcher %s service=%s max=%d iterations=%d\n",
		d.settings.Name, d.params.Service, d.params.Max, d.Iterations())
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFD\tTYPE\tPRIO\tUSER\tHOOK")
	d.mu.Lock()
	d.table.Each(func(id uint32, reg *registration) bool {
		if reg.live {
			fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\t%s\n",
				id, reg.fd, reg.params.Type, reg.params.Prio, reg.params.User, reg.hook.Name())
		}
		return true
	})
	d.mu.Unlock()
	_ = w.Flush()
	return b.String()
}

// Close removes every registration and releases the multiplexer.
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.ClearEvents()
	d.settings.Probes.UnregisterProbe(d.settings.Name)
	d.settings.Logger.Debug().Str("dispatcher", d.settings.Name).Log("dispatcher closed")
	return d.mux.Close()
}

func (d *Dispatcher) fail(err *api.Error) error {
	d.settings.Metrics.RecordError(d.settings.Name, err.Code.String())
	d.settings.Logger.Warning().
		Str("dispatcher", d.settings.Name).
		Err(err).
		Log("dispatcher operation rejected")
	return err
}
