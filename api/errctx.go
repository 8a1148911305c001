// Package api
// Author: momentics <momentics@gmail.com>
//
// First-error propagation across a guarded sequence of calls, plus the
// abort-style entry points for call sites without an error channel.

package api

import "fmt"

// ErrContext keeps the first error observed across a sequence of operations.
// Once an error is recorded, Guard skips the remaining steps.
// The zero value is ready to use. Not safe for concurrent use.
type ErrContext struct {
	err error
}

// Guard runs fn unless an earlier step already failed, and records its error.
// It reports whether the context is still clean afterwards.
func (c *ErrContext) Guard(fn func() error) bool {
	if c.err != nil {
		return false
	}
	if err := fn(); err != nil {
		c.err = err
	}
	return c.err == nil
}

// Set records err if it is the first one, and reports whether the context
// is still clean.
func (c *ErrContext) Set(err error) bool {
	if c.err == nil && err != nil {
		c.err = err
	}
	return c.err == nil
}

// Err returns the first recorded error.
func (c *ErrContext) Err() error { return c.err }

// Failed reports whether an error has been recorded.
func (c *ErrContext) Failed() bool { return c.err != nil }

// Reset clears the recorded error.
func (c *ErrContext) Reset() { c.err = nil }

// Must returns v, or panics if err is non-nil.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Errorf("hioload-mt: %w", err))
	}
	return v
}

// MustDo panics if err is non-nil.
func MustDo(err error) {
	if err != nil {
		panic(fmt.Errorf("hioload-mt: %w", err))
	}
}
