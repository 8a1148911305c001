// File: chainqueue/doc.go
// Author: momentics <momentics@gmail.com>
//
// Package chainqueue implements a bounded multi-item hand-off channel.
//
// A Processor owns a fixed pool of payload slots and a FIFO of pending
// chains. Producers obtain a Client, Acquire slots, fill them and Insert the
// chain. The consumer calls Process directly, or registers Descriptor with a
// dispatcher and calls Process from the hook.
//
// The pending FIFO signals the descriptor once per empty to non-empty
// transition; the consumer re-arms it while chains remain, so the signal
// count never falls behind the queue.
package chainqueue
