// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug probes common to every platform.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets runtime debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS + "/" + runtime.GOARCH
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
}
