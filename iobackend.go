package uvloop

// ioBackend is the platform contract every I/O multiplexer (epoll, kqueue,
// IOCP) satisfies, unifying the readiness model (epoll/kqueue: "tell me
// when fd is ready, I'll do the read/write myself") and the completion
// model (IOCP: "I did the read/write, here's the result") behind a single
// poll(timeout) call, per spec.md §4.2. Readiness backends translate
// events directly into PollEvent callbacks; the Windows backend adapts
// completion packets into the same shape so Poll and the rest of the loop
// never need to know which model is underneath.
type ioBackend interface {
	// init prepares the backend's kernel object (epoll_create1, kqueue,
	// CreateIoCompletionPort) and arms the wake primitive inside it.
	init() error

	// close releases the backend's kernel object and wake primitive.
	close() error

	// watcherInit registers fd with the backend in an inert state: known,
	// but no events armed. Returns ErrExists if fd is already registered.
	watcherInit(fd int) error

	// watcherStart arms events on a previously-initialized fd. cb is
	// invoked (from inside poll, NOT on a separate goroutine) whenever the
	// backend observes one of the requested conditions.
	watcherStart(fd int, events PollEvent, cb func(PollEvent, error)) error

	// watcherStop disarms event delivery for fd without forgetting it.
	watcherStop(fd int) error

	// watcherInvalidate forgets fd entirely (spec §4.7: called during a
	// Poll handle's close, so any event already queued for a since-closed
	// or since-recycled fd is silently dropped instead of misdelivered).
	watcherInvalidate(fd int)

	// poll blocks for at most timeoutMs milliseconds (or indefinitely if
	// timeoutMs < 0, or returns immediately if timeoutMs == 0) waiting for
	// I/O readiness or a wake() call, dispatching any ready watcher's
	// callback before returning. Returns the number of fds serviced.
	poll(timeoutMs int) (int, error)

	// wake interrupts a blocked poll call from any goroutine. Multiple
	// concurrent wake() calls before poll observes the first one coalesce,
	// matching the Async handle's own coalescing contract (spec §4.5).
	wake() error
}
