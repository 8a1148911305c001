//go:build !linux

// File: thread/thread_other.go
// Author: momentics <momentics@gmail.com>
//
// Thread naming and pinning are Linux only; elsewhere the name is ignored
// and a requested CPU is rejected.

package thread

import "github.com/momentics/hioload-mt/api"

func setup(_ string, cpu int) error {
	if cpu >= 0 {
		return api.ErrNotSupported
	}
	return nil
}
