package uvloop

// Timer is a handle that fires its callback once after a delay, optionally
// repeating, per spec.md §6 and original_source include/uv.h's uv_timer_t.
type Timer struct {
	*Handle
	cb      func(t *Timer)
	repeat  uint64 // milliseconds; 0 means one-shot
	running bool
}

// NewTimer allocates a Timer bound to loop but does not arm it (spec §4.4
// handle_init semantics: init never starts the handle).
func NewTimer(loop *Loop) *Timer {
	t := &Timer{Handle: &Handle{}}
	initHandle(loop, t.Handle, HandleTimer, func(h *Handle) {
		loop.timers.Cancel(t)
	})
	return t
}

// Start arms the timer to fire cb after timeoutMs, and every repeatMs
// thereafter if repeatMs > 0 (spec §4.3). Calling Start on an already
// running timer re-arms it from now, matching original_source's
// uv_timer_start behavior (it stops the previous registration first).
func (t *Timer) Start(timeoutMs uint64, repeatMs uint64, cb func(t *Timer)) error {
	if t.IsClosing() {
		return ErrHandleClosing
	}
	t.cb = cb
	t.repeat = repeatMs
	t.running = true
	t.startHandle()
	deadline := t.loop.nowMillis() + timeoutMs
	t.loop.timers.Insert(t, deadline)
	return nil
}

// Stop disarms the timer. Idempotent.
func (t *Timer) Stop() error {
	if !t.running {
		return nil
	}
	t.running = false
	t.stopHandle()
	t.loop.timers.Cancel(t)
	return nil
}

// Again stops and restarts the timer using its repeat interval, with the
// same callback (original_source uv_timer_again). Returns ErrInval if the
// timer was never started or has no repeat interval.
func (t *Timer) Again() error {
	if t.cb == nil {
		return &wrappedErrno{errno: INVAL}
	}
	if t.repeat == 0 {
		return &wrappedErrno{errno: INVAL}
	}
	return t.Start(t.repeat, t.repeat, t.cb)
}

// SetRepeat changes the repeat interval for future firings; takes effect on
// the next natural re-arm (does not reschedule an already-pending fire).
func (t *Timer) SetRepeat(repeatMs uint64) { t.repeat = repeatMs }

// GetRepeat returns the current repeat interval, 0 for a one-shot timer.
func (t *Timer) GetRepeat() uint64 { return t.repeat }

// fire is invoked by the loop during the "run due timers" phase (spec §4.1
// step 1) for each Timer the wheel reports as due.
func (t *Timer) fire() {
	if !t.running {
		return
	}
	if t.repeat > 0 {
		deadline := t.loop.nowMillis() + t.repeat
		t.loop.timers.Insert(t, deadline)
	} else {
		t.running = false
		t.stopHandle()
	}
	if t.cb != nil {
		t.cb(t)
	}
}
