package uvloop

import "sync/atomic"

// Async is a handle that lets any goroutine wake the loop and schedule a
// callback, the only thread-safe handle operation in the whole API (spec
// §4.5, §6 uv_async_t equivalent). Repeated Send calls before the loop
// observes the first one coalesce into a single callback invocation —
// mirrored from the loop-wide wake primitive in wakeup_linux.go, but scoped
// per handle via a CAS pending flag instead of a single package-global bit.
type Async struct {
	*Handle
	cb      func(a *Async)
	pending atomic.Bool
}

// NewAsync allocates and arms an Async handle. Unlike other handle types,
// an Async is active from construction: there is no separate Start, since
// original_source's uv_async_init is the only initializer libuv ships for
// this type.
func NewAsync(loop *Loop, cb func(a *Async)) *Async {
	a := &Async{Handle: &Handle{}, cb: cb}
	initHandle(loop, a.Handle, HandleAsync, nil)
	a.fireFn = a.fire
	a.startHandle()
	loop.asyncHandles.pushBack(a.Handle)
	return a
}

// Send requests that cb run on the loop goroutine at its next opportunity.
// Safe to call from any goroutine, including concurrently with itself and
// with the loop's own goroutine. If a send is already pending and
// unobserved, this call is a no-op (spec invariant A1: coalescing, not
// counting).
func (a *Async) Send() {
	if a.pending.CompareAndSwap(false, true) {
		a.loop.wakeup()
	}
}

// fire is invoked by the loop once per tick for every Async whose pending
// flag is set, clearing the flag before invoking cb so a Send racing with
// the callback schedules another firing rather than being lost.
func (a *Async) fire() {
	if !a.pending.CompareAndSwap(true, false) {
		return
	}
	if a.cb != nil {
		a.cb(a)
	}
}
