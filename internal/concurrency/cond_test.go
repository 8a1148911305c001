package concurrency_test

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-mt/internal/concurrency"
	"github.com/stretchr/testify/assert"
)

func TestCond_WaitForExpires(t *testing.T) {
	var mu sync.Mutex
	c := concurrency.NewCond(&mu)

	mu.Lock()
	start := time.Now()
	timedOut := c.WaitFor(20 * time.Millisecond)
	elapsed := time.Since(start)
	mu.Unlock()

	assert.True(t, timedOut)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
}

func TestCond_NonPositiveWaitExpiresImmediately(t *testing.T) {
	var mu sync.Mutex
	c := concurrency.NewCond(&mu)
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, c.WaitFor(0))
}

func TestCond_SignalWakesTimedWaiter(t *testing.T) {
	var mu sync.Mutex
	c := concurrency.NewCond(&mu)
	ready := false

	go func() {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		ready = true
		c.Signal()
		mu.Unlock()
	}()

	mu.Lock()
	for !ready {
		if c.WaitFor(time.Second) {
			break
		}
	}
	got := ready
	mu.Unlock()
	assert.True(t, got)
}

func TestCond_SignalWakesAllWaiters(t *testing.T) {
	var mu sync.Mutex
	c := concurrency.NewCond(&mu)
	release := false

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			for !release {
				c.Wait()
			}
			mu.Unlock()
		}()
	}

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	release = true
	c.Signal()
	mu.Unlock()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters were not released")
	}
}
