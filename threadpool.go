package uvloop

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// envOrDefaultThreadPoolSize reads UVLOOP_THREADPOOL_SIZE (an integer >= 1),
// falling back to defaultThreadPoolSize when unset, empty, or invalid —
// the same "env var wins, else computed default" precedence original_source
// uses for UV_THREADPOOL_SIZE (src/threadpool.c init_once).
func envOrDefaultThreadPoolSize() int {
	if v := os.Getenv("UVLOOP_THREADPOOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return defaultThreadPoolSize()
}

// threadPool is the fixed worker-goroutine pool backing QueueWork (spec
// §4.6, §9 "Global state": a single process-wide pool, not one per loop).
// Workers pull Requests from a single shared work queue — submitted by any
// Loop on the process, which is why it must be an MPSC structure rather
// than the single-producer case a per-loop pool would allow — and, once a
// Request finishes, push its completion onto the Request's *own* loop's
// completions queue and wake that specific loop, so a pool shared by many
// loops still only ever delivers a callback to the loop that submitted it.
type threadPool struct {
	work *completionQueue // any loop -> workers

	slowSem chan struct{} // capacity = slowWorkCap; bounds concurrent "slow" work

	wg       sync.WaitGroup
	stopCh   chan struct{}
	canceled sync.Map // *Request -> struct{}, marks cooperative-cancel requests
}

func newThreadPool(size int, slowCap int) *threadPool {
	tp := &threadPool{
		work:    newCompletionQueue(),
		slowSem: make(chan struct{}, slowCap),
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		tp.wg.Add(1)
		go tp.workerLoop()
	}
	return tp
}

var (
	globalPoolMu sync.Mutex
	globalPool   *threadPool
)

// sharedThreadPool returns the process-singleton thread pool, creating it
// on the first call (spec §9: "initialized lazily on first submission").
// size and slowCap are honored only for the call that actually creates the
// pool — exactly as original_source reads UV_THREADPOOL_SIZE exactly once,
// process-wide; a later Loop configured with different Option values joins
// the pool already running rather than spawning a second one.
func sharedThreadPool(size, slowCap int) *threadPool {
	globalPoolMu.Lock()
	defer globalPoolMu.Unlock()
	if globalPool == nil {
		globalPool = newThreadPool(size, slowCap)
	}
	return globalPool
}

// submit enqueues r for execution on a pool worker. Safe to call from any
// Loop sharing this pool; Loop.QueueWork is the only caller (spec §5: the
// thread pool is fed exclusively by loops, never directly by arbitrary
// application goroutines).
func (tp *threadPool) submit(r *Request) {
	tp.work.Push(func() { tp.runRequest(r) })
}

// cancel marks r as cancelled if it hasn't started running yet. Returns
// whether the cancellation took effect (spec §4.6 step 5).
func (tp *threadPool) cancel(r *Request) bool {
	if r.done {
		return false
	}
	_, already := tp.canceled.LoadOrStore(r, struct{}{})
	return !already
}

func (tp *threadPool) runRequest(r *Request) {
	if _, canceled := tp.canceled.LoadAndDelete(r); canceled {
		r.canceled = true
		r.err = ErrCanceled
		r.loop.completions.Push(func() { r.fire() })
		r.loop.wakeup()
		return
	}

	release := func() {}
	if r.typ == RequestSlow {
		tp.slowSem <- struct{}{}
		release = func() { <-tp.slowSem }
	}
	result, err := r.work()
	release()

	r.result, r.err = result, err
	r.loop.completions.Push(func() { r.fire() })
	r.loop.wakeup()
}

// workerLoop is the body of a single fixed pool worker: it blocks (via a
// short backoff, since completionQueue is a lock-free MPSC ring without a
// native blocking Pop) until work appears or the pool is stopped.
func (tp *threadPool) workerLoop() {
	defer tp.wg.Done()
	for {
		fn := tp.work.Pop()
		if fn != nil {
			fn()
			continue
		}
		select {
		case <-tp.stopCh:
			return
		default:
			tp.parkBriefly()
		}
	}
}

// drainCompletionsInto moves every finished Request's fire callback from a
// loop's own completions queue into dst, called from that loop's goroutine
// just before the pending-callbacks phase (spec §4.1 step 2).
func drainCompletionsInto(src *completionQueue, dst *callbackQueue) {
	for {
		fn := src.Pop()
		if fn == nil {
			return
		}
		dst.Push(fn)
	}
}

// parkBriefly backs off a worker with no work, instead of a hot spin —
// completionQueue has no blocking Pop, so a worker pool this small (single
// digits of goroutines) is cheaper to park-and-poll than to add a
// condition variable just for this.
func (tp *threadPool) parkBriefly() {
	select {
	case <-tp.stopCh:
	case <-time.After(time.Millisecond):
	}
}

// stop signals all workers to exit once their current item (if any)
// completes, and waits for them to drain. Only meaningful for a private
// pool built directly via newThreadPool (e.g. in tests) — the process
// singleton returned by sharedThreadPool outlives any single Loop and is
// never stopped by Loop.Close, matching original_source's own threadpool
// lifetime (torn down at process exit, not at uv_loop_close).
func (tp *threadPool) stop() {
	close(tp.stopCh)
	tp.wg.Wait()
}
