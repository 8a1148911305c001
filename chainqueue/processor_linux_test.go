//go:build linux

package chainqueue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/chainqueue"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/internal/testlog"
	"github.com/momentics/hioload-mt/pool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_DeliversTwoSlotsAndRefillsPool(t *testing.T) {
	p, err := chainqueue.New[int](4)
	require.NoError(t, err)
	defer p.Close()
	assert.GreaterOrEqual(t, p.Descriptor(), 0)

	go func() {
		c := p.MakeClient(1)
		chain, err := c.Acquire(2)
		if err != nil {
			return
		}
		chain.At(0).Value = 10
		chain.At(1).Value = 20
		_ = c.Insert(chain)
	}()

	var got []int
	var freeDuring int
	err = p.Process(chainqueue.LogicFunc[int](func(chain pool.Chain[int]) {
		got = chain.Values()
		freeDuring = p.Free()
	}), 1)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 20}, got)
	assert.Equal(t, 2, freeDuring)
	assert.Equal(t, 4, p.Free())
	assert.Equal(t, 0, p.Pending())
}

func TestProcess_FIFOAcrossProducers(t *testing.T) {
	const producers, perProducer = 4, 50
	p, err := chainqueue.New[[2]int](8)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	for id := 0; id < producers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := p.MakeClient(api.User(id))
			for seq := 0; seq < perProducer; seq++ {
				var chain pool.Chain[[2]int]
				for {
					var err error
					if chain, err = c.Acquire(1); err == nil {
						break
					}
					time.Sleep(time.Microsecond)
				}
				chain.At(0).Value = [2]int{id, seq}
				if err := c.Insert(chain); err != nil {
					t.Error(err)
					return
				}
			}
		}(id)
	}

	next := make([]int, producers)
	seen := 0
	logic := chainqueue.LogicFunc[[2]int](func(chain pool.Chain[[2]int]) {
		v := chain.At(0).Value
		// per-producer order is the order of insertion
		assert.Equal(t, next[v[0]], v[1])
		next[v[0]] = v[1] + 1
		seen++
	})
	for seen < producers*perProducer {
		require.NoError(t, p.Process(logic, 1))
	}
	wg.Wait()

	for id := range next {
		assert.Equal(t, perProducer, next[id])
	}
	assert.Equal(t, 8, p.Free())
}

func TestProcess_SecondChainIsNotStranded(t *testing.T) {
	p, err := chainqueue.New[string](4)
	require.NoError(t, err)
	defer p.Close()
	c := p.MakeClient(0)

	for _, v := range []string{"a", "b", "c"} {
		chain, err := c.Acquire(1)
		require.NoError(t, err)
		chain.At(0).Value = v
		require.NoError(t, c.Insert(chain))
	}

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- p.Process(chainqueue.LogicFunc[string](func(chain pool.Chain[string]) {
			got = append(got, chain.At(0).Value)
		}), 3)
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer stalled with chains pending")
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestClient_RejectsEmptyChainWithoutSideEffects(t *testing.T) {
	rec, logger := testlog.New()
	m := control.NewMetrics()
	p, err := chainqueue.New[int](2, control.WithName("jobs"), control.WithLogger(logger), control.WithMetrics(m))
	require.NoError(t, err)
	defer p.Close()
	c := p.MakeClient(7)

	assert.ErrorIs(t, c.Insert(pool.Chain[int]{}), api.ErrInvalidArgument)
	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, 2, p.Free())

	_, err = c.Acquire(3)
	assert.ErrorIs(t, err, api.ErrResourceExhausted)
	assert.Equal(t, 2, p.Free())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("jobs", "invalid_argument")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("jobs", "resource_exhausted")))
	e, ok := rec.Find("chainqueue insert rejected")
	require.True(t, ok)
	assert.Equal(t, "jobs", e.Fields["processor"])
	_, ok = rec.Find("chainqueue created")
	assert.True(t, ok)
}

func TestAcquire_ConcurrentNeverOversubscribes(t *testing.T) {
	const capacity = 16
	p, err := chainqueue.New[int](capacity)
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	outstanding := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			c := p.MakeClient(api.User(g))
			for i := 0; i < 200; i++ {
				chain, err := c.Acquire(1 + (g+i)%5)
				if err != nil {
					continue
				}
				mu.Lock()
				outstanding += chain.Len()
				assert.LessOrEqual(t, outstanding, capacity)
				mu.Unlock()

				mu.Lock()
				outstanding -= chain.Len()
				mu.Unlock()
				assert.NoError(t, c.Release(chain))
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, capacity, p.Free())
}

func TestProcess_LogicMayReenterProcessor(t *testing.T) {
	p, err := chainqueue.New[int](2)
	require.NoError(t, err)
	defer p.Close()
	c := p.MakeClient(0)

	chain, err := c.Acquire(1)
	require.NoError(t, err)
	require.NoError(t, c.Insert(chain))

	calls := 0
	err = p.Process(chainqueue.LogicFunc[int](func(pool.Chain[int]) {
		calls++
		if calls > 1 {
			return
		}
		// both locks are free while logic runs
		next, err := c.Acquire(1)
		require.NoError(t, err)
		require.NoError(t, c.Insert(next))
	}), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, p.Free())
}

func TestClient_InvalidStates(t *testing.T) {
	var zero chainqueue.Client[int]
	assert.False(t, zero.Valid())
	_, err := zero.Acquire(1)
	assert.ErrorIs(t, err, api.ErrUsedWhileInvalid)

	p, err := chainqueue.New[int](1)
	require.NoError(t, err)
	c := p.MakeClient(5)
	moved := c.Move()
	assert.False(t, c.Valid())
	assert.True(t, moved.Valid())
	assert.Equal(t, api.User(5), moved.User())
	assert.ErrorIs(t, c.Insert(pool.Chain[int]{}), api.ErrUsedWhileInvalid)

	require.NoError(t, p.Close())
	assert.False(t, p.Valid())
	assert.False(t, moved.Valid())
	assert.ErrorIs(t, p.Process(chainqueue.LogicFunc[int](func(pool.Chain[int]) {}), 1), api.ErrUsedWhileInvalid)
	assert.NoError(t, p.Close())
}

func TestNew_RejectsZeroCapacity(t *testing.T) {
	_, err := chainqueue.New[int](0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestProbeReportsState(t *testing.T) {
	probes := control.NewDebugProbes()
	p, err := chainqueue.New[int](3, control.WithName("q"), control.WithProbes(probes))
	require.NoError(t, err)

	c := p.MakeClient(0)
	chain, err := c.Acquire(2)
	require.NoError(t, err)
	require.NoError(t, c.Insert(chain))

	state := probes.DumpState()["q"].(map[string]any)
	assert.Equal(t, 3, state["capacity"])
	assert.Equal(t, 1, state["free"])
	assert.Equal(t, 1, state["pending"])

	require.NoError(t, p.Close())
	assert.NotContains(t, probes.DumpState(), "q")
}
