//go:build linux

package thread

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_NamesAndPinsThread(t *testing.T) {
	cpus, err := currentCPUs()
	require.NoError(t, err)
	require.NotEmpty(t, cpus)
	cpu := cpus[len(cpus)-1]

	var name string
	var pinned []int
	ran := false
	h, err := Start("hioload-consumer-0", cpu, LogicFuncs{
		OnPrepare: func() error {
			var err error
			if name, err = currentName(); err != nil {
				return err
			}
			pinned, err = currentCPUs()
			return err
		},
		OnRun: func() { ran = true },
	})
	require.NoError(t, err)
	h.Wait()

	assert.Equal(t, "hioload-consumer-0", h.Name())
	// truncated to the kernel's limit
	assert.Equal(t, "hioload-consume", name)
	assert.Equal(t, []int{cpu}, pinned)
	assert.True(t, ran)
}

func TestStart_PrepareFailureSkipsRun(t *testing.T) {
	rec, logger := testlog.New()
	errPrep := errors.New("no resources")
	ran := false

	h, err := Start("prep", -1, LogicFuncs{
		OnPrepare: func() error { return errPrep },
		OnRun:     func() { ran = true },
	}, control.WithLogger(logger))
	assert.ErrorIs(t, err, errPrep)
	assert.Nil(t, h)
	assert.False(t, ran)
	_, ok := rec.Find("thread start failed")
	assert.True(t, ok)
}

func TestStart_InvalidCPUIsSetupFailure(t *testing.T) {
	_, err := Start("badcpu", 1<<20, LogicFuncs{})
	assert.ErrorIs(t, err, api.ErrSetupFailure)

	_, err = Start("nil", -1, nil)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestStart_RunOutlivesStart(t *testing.T) {
	release := make(chan struct{})
	h, err := Start("runner", -1, LogicFuncs{OnRun: func() { <-release }})
	require.NoError(t, err)

	select {
	case <-h.Done():
		t.Fatal("run finished early")
	default:
	}
	close(release)
	h.Wait()
}
