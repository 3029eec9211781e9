// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package uvloop implements a single-threaded, reactor-pattern async I/O
// event loop in the style of libuv: a phase-based tick (timers, pending
// callbacks, idle, prepare, poll, check, close), a handle/request lifecycle
// with two-phase close, a cascading timer wheel, and a fixed thread pool
// bridging blocking work back onto the loop goroutine.
package uvloop

import (
	"sync/atomic"
	"time"
)

// Loop is the event loop itself. A Loop is not safe for concurrent use
// except where documented (Async.Send is the only operation callable from
// outside the loop goroutine; see spec §5).
type Loop struct {
	state *atomicState

	backend ioBackend
	timers  *timerWheel

	// pool is the process-wide thread pool (threadpool.go), assigned
	// lazily from the shared singleton on this loop's first QueueWork call
	// (spec §9 "Global state"). completions is this loop's own inbox for
	// that pool's finished Requests — private per loop even though the
	// pool's workers are shared, since completionQueue is single-consumer.
	pool        *threadPool
	completions *completionQueue

	handlesHead   *Handle // global list of every live handle
	activeHandles atomic.Int64

	pending        callbackQueue
	idleHandles    handleList
	prepareHandles handleList
	checkHandles   handleList
	asyncHandles   handleList
	closing        handleList

	startMono time.Time
	nowMs     uint64

	opts    *loopOptions
	logger  *Logger
	metrics *loopMetrics

	runMode   RunMode
	running   bool
	stopAsked bool
}

// New constructs a Loop ready to Run. The I/O backend is initialized
// eagerly so construction failures surface immediately rather than on
// first Run (spec §4.1: a Loop is usable the instant New returns). The
// thread pool is NOT initialized here — it's a process-wide singleton,
// lazily created by the first QueueWork call on any Loop (spec §9).
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		state:       newAtomicState(StateAwake),
		timers:      newTimerWheel(0),
		completions: newCompletionQueue(),
		opts:        cfg,
		logger:      loggerFor(cfg),
		startMono:   time.Now(),
	}
	l.backend = newIOBackend()
	if err := l.backend.init(); err != nil {
		return nil, err
	}
	if cfg.metricsEnabled {
		l.metrics = newLoopMetrics()
	}
	l.nowMs = l.computeNowMillis()
	return l, nil
}

func (l *Loop) computeNowMillis() uint64 {
	return uint64(time.Since(l.startMono).Milliseconds())
}

// nowMillis returns the loop's cached "now", updated once per tick (spec
// §4.1 step 0, "update loop time") rather than re-read per callback — the
// same freeze-time-per-tick contract original_source's uv_now documents.
func (l *Loop) nowMillis() uint64 { return l.nowMs }

// Now returns the loop's cached time as a time.Time, for convenience.
func (l *Loop) Now() time.Time {
	return l.startMono.Add(time.Duration(l.nowMs) * time.Millisecond)
}

func (l *Loop) linkHandle(h *Handle) {
	h.next = l.handlesHead
	if l.handlesHead != nil {
		l.handlesHead.prev = h
	}
	h.prev = nil
	l.handlesHead = h
}

func (l *Loop) unlinkHandle(h *Handle) {
	if h.prev != nil {
		h.prev.next = h.next
	} else if l.handlesHead == h {
		l.handlesHead = h.next
	}
	if h.next != nil {
		h.next.prev = h.prev
	}
	h.prev, h.next = nil, nil
}

// Walk invokes fn once for every live handle, including ones mid-close
// (original_source uv_walk, supplemented per SPEC_FULL.md since it's a
// near-zero-cost diagnostic primitive every production libuv consumer ends
// up wanting).
func (l *Loop) Walk(fn func(h *Handle)) {
	for h := l.handlesHead; h != nil; h = h.next {
		fn(h)
	}
}

// safeInvoke runs fn, recovering a panic into a logged error rather than
// crashing the whole loop — user callbacks are untrusted code from the
// loop's perspective (spec §7: a callback panic must not corrupt loop
// state). The tick's own bookkeeping always completes regardless.
func (l *Loop) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().Log("callback panic recovered")
		}
	}()
	fn()
}

func (l *Loop) wakeup() {
	if err := l.backend.wake(); err != nil {
		l.logger.Err().Log("wake primitive failed")
	}
}

// QueueWork submits fn to the process-wide thread pool, invoking after on
// this loop's goroutine once fn completes (spec §4.6, §9). typ selects the
// fast/slow work class; slow work is capped at the configured slow-work
// concurrency limit. The pool itself is created lazily on the first call
// to QueueWork across the whole process, per spec §9's singleton
// contract — this loop's threadPoolSize/slowWorkCap Options only take
// effect if no other loop has submitted work yet.
func (l *Loop) QueueWork(typ RequestType, fn func() (interface{}, error), after func(result interface{}, err error)) *Request {
	if l.pool == nil {
		l.pool = sharedThreadPool(l.opts.threadPoolSize, l.opts.slowWorkCap)
	}
	r := newRequest(l, typ, fn, after)
	l.pool.submit(r)
	return r
}

// isAlive reports whether the loop has any reason to keep ticking: an
// active+ref'd handle, or a handle still draining the close protocol (spec
// §4.1's "loop alive" predicate, RunDefault's stopping condition).
func (l *Loop) isAlive() bool {
	return l.activeHandles.Load() > 0 || l.closing.len > 0
}

// Alive reports whether the loop has any reason to keep running: an
// active, ref'd handle, or a handle still draining its close protocol
// (spec §6 loop_alive(loop)).
func (l *Loop) Alive() bool {
	return l.isAlive()
}

// Run drives the loop according to mode until it has no more reason to run
// (RunDefault), or for exactly one tick (RunOnce/RunNoWait), per spec §4.1
// and original_source's uv_run. A reentrant call (Run invoked from inside a
// callback already running on this loop) returns ErrReentrantRun — the
// Open Question in SPEC_FULL.md decided against supporting nested runs,
// since libuv documents the behavior as undefined and no caller in the
// retrieved corpus relies on it.
func (l *Loop) Run(mode RunMode) error {
	if l.running {
		return ErrReentrantRun
	}
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		return ErrLoopAlreadyRunning
	}
	l.running = true
	l.stopAsked = false
	l.runMode = mode
	defer func() {
		l.running = false
		l.state.TryTransition(StateRunning, StateAwake)
	}()

	for {
		alive := l.tick(mode)
		if l.stopAsked || mode != RunDefault || !alive {
			break
		}
	}
	return nil
}

// tick executes exactly one pass of the phase machine (spec §4.1 steps
// 0-9), returning whether the loop should keep running under RunDefault.
func (l *Loop) tick(mode RunMode) bool {
	tickStart := time.Now()
	if l.metrics != nil {
		defer func() { l.metrics.recordTick(time.Since(tickStart)) }()
	}

	// Step 0: update loop time.
	l.nowMs = l.computeNowMillis()

	// Step 1: run due timers.
	for _, t := range l.timers.Advance(l.nowMs) {
		l.safeInvoke(t.fire)
	}

	// Step 2: drain this loop's own thread-pool completions into the
	// pending queue (l.pool may still be nil if this loop has never
	// called QueueWork; l.completions is then simply always empty).
	drainCompletionsInto(l.completions, &l.pending)
	if l.metrics != nil {
		l.metrics.Queue.UpdatePending(l.pending.Length())
		if l.pool != nil {
			l.metrics.Queue.UpdateWork(l.pool.work.Length())
		}
	}

	// Step 3: run pending callbacks queued by the previous phases.
	for {
		fn, ok := l.pending.Pop()
		if !ok {
			break
		}
		l.safeInvoke(fn)
	}

	// Step 4: run idle watchers. An active idle handle also forces the
	// poll timeout to zero below, so idle work never starves I/O but also
	// never waits behind a long poll.
	l.idleHandles.forEach(func(h *Handle) { l.safeInvoke(h.fireFn) })

	// Step 5: run prepare watchers, immediately before the poll call.
	l.prepareHandles.forEach(func(h *Handle) { l.safeInvoke(h.fireFn) })

	// Step 6: compute the poll timeout.
	timeout := l.computePollTimeout(mode)

	// Step 7: poll for I/O (readiness or completion, per backend).
	if _, err := l.backend.poll(timeout); err != nil {
		l.logger.Err().Log("poll failed")
	}

	// Step 8: run check watchers, immediately after the poll call.
	l.checkHandles.forEach(func(h *Handle) { l.safeInvoke(h.fireFn) })

	// Async handles fire alongside check, matching original_source's
	// ordering of uv__async relative to uv__run_check.
	l.asyncHandles.forEach(func(h *Handle) { l.safeInvoke(h.fireFn) })

	// Step 9: run closing callbacks.
	l.runClosing()

	return l.isAlive()
}

const maxPollTimeoutMs = 1<<31 - 1

func (l *Loop) computePollTimeout(mode RunMode) int {
	switch {
	case mode == RunNoWait:
		return 0
	case l.idleHandles.len > 0:
		return 0
	case l.pending.Length() > 0:
		return 0
	case l.closing.len > 0:
		return 0
	case l.stopAsked:
		return 0
	}
	nt := l.timers.NextTimeout()
	if nt < 0 {
		if l.isAlive() {
			return -1
		}
		return 0
	}
	if nt > maxPollTimeoutMs {
		nt = maxPollTimeoutMs
	}
	return int(nt)
}

func (l *Loop) runClosing() {
	if l.closing.len == 0 {
		return
	}
	var batch []*Handle
	l.closing.forEach(func(h *Handle) { batch = append(batch, h) })
	for _, h := range batch {
		l.closing.remove(h)
		h.finishClose()
	}
}

// Stop asks the loop to return from Run as soon as the current tick
// finishes, without waiting for isAlive() to become false (original_source
// uv_stop). Safe to call from within a callback running on the loop.
func (l *Loop) Stop() {
	l.stopAsked = true
}

// Close releases the loop's I/O backend. Fails with
// ErrLoopHasActiveHandles if any handle is still alive or mid-close (spec
// §6 loop_close "fails if any handle is still alive") — the caller must
// Stop/Close every handle and Run the loop until Alive() is false first.
// The thread pool is a process-wide singleton (spec §9) shared with every
// other Loop, so Close never stops it; it lives for the process's
// lifetime, the same as original_source's own threadpool.
func (l *Loop) Close() error {
	if l.isAlive() {
		return ErrLoopHasActiveHandles
	}
	l.state.Store(StateTerminated)
	return l.backend.close()
}
