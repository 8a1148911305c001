// File: dispatcher/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package dispatcher implements a single-threaded readiness reactor.
//
// Descriptors are registered with a Hook and EventParams. EventLoop waits on
// the multiplexer, lets the Logic reorder the ready batch, then notifies each
// hook in turn. A hook answers Continue (optionally swapping in a new hook),
// RemoveEvent or QuitEventLoop.
//
// Registrations removed while a batch is being delivered, by their own hook
// or by another one, are never notified again. Processor descriptors from
// the chainqueue, command, event and notifychange packages plug in directly:
// the hook calls the processor's Process with a small max.
package dispatcher
