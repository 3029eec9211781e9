package uvloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncSendWakesLoopAndFiresOnce(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := 0
	var async *Async
	async = NewAsync(loop, func(*Async) {
		fired++
		loop.Stop()
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		async.Send()
	}()

	done := make(chan error, 1)
	go func() { done <- loop.Run(RunDefault) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop never woke for async send")
	}
	require.Equal(t, 1, fired)
}

func TestAsyncConcurrentSendsCoalesce(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var mu sync.Mutex
	fireCount := 0
	async := NewAsync(loop, func(*Async) {
		mu.Lock()
		fireCount++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			async.Send()
		}()
	}
	wg.Wait()

	require.NoError(t, loop.Run(RunNoWait))

	mu.Lock()
	defer mu.Unlock()
	// Coalescing means far fewer firings than sends; at minimum one.
	require.GreaterOrEqual(t, fireCount, 1)
	require.Less(t, fireCount, 50)
}
