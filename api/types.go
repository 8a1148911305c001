// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// User is the opaque tag a client carries, delivered alongside the data it
// posts so the consumer can tell producers apart.
type User int64

// NoUser is the tag of clients created without one.
const NoUser User = 0

// Count is an accumulated semaphore count.
type Count uint64

// Pollable is implemented by processors whose wake-ups are signalled through
// a descriptor that can be registered with a readiness multiplexer.
type Pollable interface {
	// Descriptor returns the raw descriptor value. It stays stable for the
	// lifetime of the processor.
	Descriptor() int
}

// Validator is implemented by handles that may be in an unusable state.
type Validator interface {
	Valid() bool
}
