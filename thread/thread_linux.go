//go:build linux

// File: thread/thread_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux thread naming and CPU pinning through prctl(2) and
// sched_setaffinity(2).

package thread

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxNameLen is the kernel's TASK_COMM_LEN without the terminator.
const maxNameLen = 15

func setup(name string, cpu int) error {
	if err := setName(name); err != nil {
		return err
	}
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	// pid 0 is the calling thread
	return unix.SchedSetaffinity(0, &set)
}

func setName(name string) error {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	b, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(b)), 0, 0, 0)
}

// currentName returns the calling thread's name.
func currentName() (string, error) {
	var buf [maxNameLen + 1]byte
	if err := unix.Prctl(unix.PR_GET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(buf[:]), nil
}

// currentCPUs returns the calling thread's allowed CPUs.
func currentCPUs() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, err
	}
	var out []int
	for cpu := 0; cpu < len(set)*64; cpu++ {
		if set.IsSet(cpu) {
			out = append(out, cpu)
		}
	}
	return out, nil
}
