package pool

import (
	"testing"

	"github.com/momentics/hioload-mt/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainQueue_RejectedCallRollsBackEarlierSlots(t *testing.T) {
	cq, err := NewChainQueue[int](3)
	require.NoError(t, err)

	a, err := cq.Acquire(1)
	require.NoError(t, err)
	b, err := cq.Acquire(1)
	require.NoError(t, err)
	_, err = cq.Insert(b)
	require.NoError(t, err)

	// first slot acquired, second already queued
	mixed := Chain[int]{slots: []*Slot[int]{a.At(0), b.At(0)}, gen: a.gen}
	_, err = cq.Insert(mixed)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, slotAcquired, a.At(0).state.Load())
	assert.Equal(t, slotQueued, b.At(0).state.Load())
	assert.Equal(t, 1, cq.Pending())

	assert.ErrorIs(t, cq.Release(mixed), api.ErrInvalidArgument)
	assert.Equal(t, slotAcquired, a.At(0).state.Load())
	assert.Equal(t, 1, cq.Free())

	// the same slot twice in one chain
	dup := Chain[int]{slots: []*Slot[int]{a.At(0), a.At(0)}, gen: a.gen}
	_, err = cq.Insert(dup)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.ErrorIs(t, cq.Release(dup), api.ErrInvalidArgument)
	assert.Equal(t, slotAcquired, a.At(0).state.Load())
	assert.Equal(t, 1, cq.Free())

	_, err = cq.Insert(a)
	require.NoError(t, err)
	assert.Equal(t, 2, cq.Pending())
}
