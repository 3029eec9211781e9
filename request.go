package uvloop

// Request is the common header for one-shot operations submitted to the
// loop's thread pool (spec.md §4.6, §3 invariant R1: a Request fires its
// completion callback exactly once, then is never touched again).
type Request struct {
	loop *Loop
	typ  RequestType

	done     bool
	canceled bool

	work   func() (interface{}, error)
	after  func(result interface{}, err error)
	result interface{}
	err    error

	qnext *Request // not linked: completions are queued as closures in the loop's completionQueue
}

// RequestType distinguishes work classes for thread-pool scheduling (spec
// §4.6: "fast" work runs with full worker-pool concurrency; "slow" work —
// the getaddrinfo/name-resolution class in original_source — is capped).
type RequestType int

const (
	RequestFast RequestType = iota
	RequestSlow
)

// newRequest builds a Request bound to loop, ready for submission via
// Loop.QueueWork. after is always invoked on the loop thread, even if work
// ran on a pool worker (spec §5: callbacks only ever run on the loop goroutine).
func newRequest(loop *Loop, typ RequestType, work func() (interface{}, error), after func(interface{}, error)) *Request {
	return &Request{loop: loop, typ: typ, work: work, after: after}
}

// Cancel attempts cooperative cancellation (spec §4.6 step 5): if the work
// function hasn't started running yet, it is skipped entirely and after is
// invoked with ErrCanceled on the next tick. Once running, Cancel has no
// effect — the original libuv contract, preserved verbatim since it's the
// only cancellation granularity a fire-and-forget worker model can offer.
func (r *Request) Cancel() bool {
	return r.loop.pool.cancel(r)
}

// fire delivers the completion callback exactly once. Called only from the
// loop goroutine during the pending-callbacks phase (spec §4.1 step 3).
func (r *Request) fire() {
	if r.done {
		return
	}
	r.done = true
	if r.after != nil {
		r.after(r.result, r.err)
	}
}
