// File: command/command.go
// Author: momentics <momentics@gmail.com>

package command

// ID identifies a command kind or instance.
type ID uint64

// Command is a request object carried by the processor.
type Command interface {
	ID() ID
}

// Base is embedded in concrete commands to provide ID.
type Base struct {
	CommandID ID
}

// ID returns the command identifier.
func (b *Base) ID() ID { return b.CommandID }

// Logic handles commands drained by Process. Process answers synchronous
// requests; the requester is blocked until it returns and receives its
// error. AsyncProcess takes ownership of an asynchronous command.
type Logic interface {
	Process(cmd Command) error
	AsyncProcess(cmd Command)
}

// LogicFuncs adapts a pair of functions to Logic. A nil field ignores the
// corresponding calls.
type LogicFuncs struct {
	OnProcess      func(cmd Command) error
	OnAsyncProcess func(cmd Command)
}

// Process calls OnProcess.
func (l LogicFuncs) Process(cmd Command) error {
	if l.OnProcess == nil {
		return nil
	}
	return l.OnProcess(cmd)
}

// AsyncProcess calls OnAsyncProcess.
func (l LogicFuncs) AsyncProcess(cmd Command) {
	if l.OnAsyncProcess != nil {
		l.OnAsyncProcess(cmd)
	}
}
