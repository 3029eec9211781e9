package uvloop

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnvOrDefaultThreadPoolSizeHonorsEnv(t *testing.T) {
	old, had := os.LookupEnv("UVLOOP_THREADPOOL_SIZE")
	defer func() {
		if had {
			os.Setenv("UVLOOP_THREADPOOL_SIZE", old)
		} else {
			os.Unsetenv("UVLOOP_THREADPOOL_SIZE")
		}
	}()

	require.NoError(t, os.Setenv("UVLOOP_THREADPOOL_SIZE", "5"))
	require.Equal(t, 5, envOrDefaultThreadPoolSize())

	require.NoError(t, os.Setenv("UVLOOP_THREADPOOL_SIZE", "not-a-number"))
	require.Equal(t, defaultThreadPoolSize(), envOrDefaultThreadPoolSize())

	require.NoError(t, os.Unsetenv("UVLOOP_THREADPOOL_SIZE"))
	require.Equal(t, defaultThreadPoolSize(), envOrDefaultThreadPoolSize())
}

func TestThreadPoolSubmitRunsWorkAndDeliversCompletion(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	tp := newThreadPool(2, 4) // private pool, not the process singleton
	defer tp.stop()

	r := newRequest(loop, RequestFast, func() (interface{}, error) {
		return "done", nil
	}, nil)
	tp.submit(r)

	tries := 0
	for {
		fn := loop.completions.Pop()
		if fn != nil {
			fn() // invokes r.fire(), which is a no-op without after
			break
		}
		tries++
		if tries > 1000 {
			t.Fatal("completion never arrived")
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, "done", r.result)
	require.NoError(t, r.err)
}

func TestThreadPoolCancelBeforeRunSkipsWork(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	tp := newThreadPool(0, 4) // no workers: nothing drains tp.work
	defer tp.stop()

	ran := false
	r := newRequest(loop, RequestFast, func() (interface{}, error) {
		ran = true
		return nil, nil
	}, nil)

	require.True(t, tp.cancel(r))
	tp.runRequest(r) // simulate what a worker would have done
	require.False(t, ran)
	require.ErrorIs(t, r.err, ErrCanceled)
}

func TestThreadPoolSlowWorkCapLimitsConcurrency(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	tp := newThreadPool(4, 1)
	defer tp.stop()

	var mu sync.Mutex
	concurrent := 0
	maxConcurrent := 0
	release := make(chan struct{})

	for i := 0; i < 3; i++ {
		r := newRequest(loop, RequestSlow, func() (interface{}, error) {
			mu.Lock()
			concurrent++
			if concurrent > maxConcurrent {
				maxConcurrent = concurrent
			}
			mu.Unlock()

			<-release

			mu.Lock()
			concurrent--
			mu.Unlock()
			return nil, nil
		}, nil)
		tp.submit(r)
	}

	time.Sleep(50 * time.Millisecond) // let workers pick up and block on the cap
	close(release)
	time.Sleep(50 * time.Millisecond) // let remaining work finish

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, maxConcurrent)
}

func TestSharedThreadPoolIsProcessSingleton(t *testing.T) {
	a := sharedThreadPool(2, 4)
	b := sharedThreadPool(8, 1) // different args: ignored, singleton already exists
	require.Same(t, a, b)
}
