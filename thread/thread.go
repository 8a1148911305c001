// File: thread/thread.go
// Author: momentics <momentics@gmail.com>
//
// Detached consumer thread. The logic runs on a goroutine locked to its own
// OS thread, named and optionally pinned to one CPU, so a dispatcher loop or
// a blocking Process call keeps a dedicated kernel thread.

package thread

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
)

// Logic is run by a detached thread. Prepare runs first on the new thread;
// Run is only called when Prepare succeeded.
type Logic interface {
	Prepare() error
	Run()
}

// LogicFuncs adapts a pair of functions to Logic. A nil OnPrepare always
// succeeds.
type LogicFuncs struct {
	OnPrepare func() error
	OnRun     func()
}

// Prepare calls OnPrepare.
func (l LogicFuncs) Prepare() error {
	if l.OnPrepare == nil {
		return nil
	}
	return l.OnPrepare()
}

// Run calls OnRun.
func (l LogicFuncs) Run() {
	if l.OnRun != nil {
		l.OnRun()
	}
}

// Handle reports the end of a detached thread.
type Handle struct {
	name string
	done chan struct{}
}

// Name returns the thread name.
func (h *Handle) Name() string { return h.name }

// Done is closed when Run returns.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until Run returns.
func (h *Handle) Wait() { <-h.done }

// Start launches logic on a new OS thread. cpu < 0 leaves the affinity
// alone. Start returns once Prepare finished on the new thread; a setup or
// Prepare failure is returned and Run is never called.
func Start(name string, cpu int, logic Logic, opts ...control.Option) (*Handle, error) {
	if logic == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "thread: nil logic")
	}
	settings, err := control.Resolve(name, opts)
	if err != nil {
		return nil, err
	}

	h := &Handle{name: settings.Name, done: make(chan struct{})}
	prepared := make(chan error, 1)
	go func() {
		defer close(h.done)
		runtime.LockOSThread()
		// never unlocked; the runtime retires the thread on exit

		if err := setup(settings.Name, cpu); err != nil {
			prepared <- api.WrapError(api.ErrCodeSetupFailure, "thread setup", err).
				WithContext("thread", settings.Name)
			return
		}
		if err := logic.Prepare(); err != nil {
			prepared <- fmt.Errorf("thread %s prepare: %w", settings.Name, err)
			return
		}
		prepared <- nil
		logic.Run()
		settings.Logger.Debug().Str("thread", settings.Name).Log("thread finished")
	}()

	if err := <-prepared; err != nil {
		<-h.done
		settings.Logger.Warning().Str("thread", settings.Name).Err(err).Log("thread start failed")
		return nil, err
	}
	settings.Logger.Debug().
		Str("thread", settings.Name).
		Int("cpu", cpu).
		Log("thread started")
	return h, nil
}
