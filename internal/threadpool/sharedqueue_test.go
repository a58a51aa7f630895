package threadpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSharedQueuePanicResilience(t *testing.T) {
	p := NewSharedQueue(4, nil)
	defer p.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Spawn(func() {
			defer wg.Done()
			panic("boom")
		})
	}
	wg.Wait()

	var count int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Spawn(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}
	wg.Wait()

	require.Equal(t, int64(100), atomic.LoadInt64(&count))
}

func TestSharedQueueRunsAllJobs(t *testing.T) {
	p := NewSharedQueue(2, nil)
	defer p.Shutdown()

	var wg sync.WaitGroup
	var count int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		p.Spawn(func() {
			defer wg.Done()
			atomic.AddInt64(&count, 1)
		})
	}
	wg.Wait()
	require.Equal(t, int64(50), atomic.LoadInt64(&count))
}

func TestSharedQueueShutdownIsIdempotent(t *testing.T) {
	p := NewSharedQueue(2, nil)
	done := make(chan struct{})
	go func() {
		p.Shutdown()
		p.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestNaiveRunsJobSynchronously(t *testing.T) {
	p := NewNaive(1)
	ran := false
	p.Spawn(func() { ran = true })
	require.True(t, ran)
	p.Shutdown()
}
