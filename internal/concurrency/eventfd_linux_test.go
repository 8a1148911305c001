//go:build linux

package concurrency_test

import (
	"testing"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/internal/concurrency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFD_WritesAccumulate(t *testing.T) {
	e, err := concurrency.NewEventFD()
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Write(2))
	require.NoError(t, e.Write(3))

	n, err := e.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
}

func TestEventFD_ReadBlocksUntilWrite(t *testing.T) {
	e, err := concurrency.NewEventFD()
	require.NoError(t, err)
	defer e.Close()

	got := make(chan uint64, 1)
	go func() {
		n, err := e.Read()
		if err == nil {
			got <- n
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, e.Write(7))
	select {
	case n := <-got:
		assert.Equal(t, uint64(7), n)
	case <-time.After(time.Second):
		t.Fatal("read did not wake")
	}
}

func TestEventFD_ZeroWriteRejected(t *testing.T) {
	e, err := concurrency.NewEventFD()
	require.NoError(t, err)
	defer e.Close()

	assert.ErrorIs(t, e.Write(0), api.ErrInvalidArgument)
}

func TestEventFD_CloseUnblocksReader(t *testing.T) {
	e, err := concurrency.NewEventFD()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, e.Fd(), 0)

	done := make(chan error, 1)
	go func() {
		_, err := e.Read()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, e.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, api.ErrUsedWhileInvalid)
	case <-time.After(time.Second):
		t.Fatal("close did not unblock reader")
	}

	assert.ErrorIs(t, e.Write(1), api.ErrUsedWhileInvalid)
	assert.NoError(t, e.Close())
}
