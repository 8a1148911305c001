//go:build !linux
// +build !linux

// File: internal/concurrency/eventfd_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-mt/api"

func newEventFD() (int, error) {
	return -1, api.ErrNotSupported
}
