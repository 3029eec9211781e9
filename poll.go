package uvloop

// PollEvent is the set of I/O readiness conditions a Poll handle can watch
// for, unified across the epoll/kqueue/IOCP backends (spec §4.2).
type PollEvent uint32

const (
	PollReadable PollEvent = 1 << iota
	PollWritable
	PollDisconnect
)

// Poll is a handle that watches an arbitrary file descriptor for
// readiness, the building block fsnotify-style and socket-style client
// code registers against (spec §6 uv_poll_t equivalent). The loop dispatches
// through the ioBackend interface (iobackend.go), so Poll itself never
// touches epoll/kqueue/IOCP directly.
type Poll struct {
	*Handle
	fd   int
	cb   func(p *Poll, events PollEvent, err error)
	mask PollEvent
}

// NewPoll allocates a Poll handle for fd, registering it with the loop's
// I/O backend in an inert (no events armed) state. fd must not already be
// registered on this loop.
func NewPoll(loop *Loop, fd int) (*Poll, error) {
	p := &Poll{Handle: &Handle{}, fd: fd}
	if err := loop.backend.watcherInit(fd); err != nil {
		return nil, err
	}
	initHandle(loop, p.Handle, HandlePoll, func(h *Handle) {
		loop.backend.watcherInvalidate(fd)
	})
	return p, nil
}

// Start arms events on the handle's fd; cb fires from the loop goroutine
// whenever the backend reports one of the requested conditions (spec
// §4.2's unified readiness/completion contract — events delivered exactly
// the same way regardless of epoll, kqueue, or IOCP underneath).
func (p *Poll) Start(events PollEvent, cb func(p *Poll, events PollEvent, err error)) error {
	if p.IsClosing() {
		return ErrHandleClosing
	}
	p.cb = cb
	p.mask = events
	p.startHandle()
	return p.loop.backend.watcherStart(p.fd, events, func(ev PollEvent, err error) {
		p.loop.safeInvoke(func() { p.deliver(ev, err) })
	})
}

// Stop disarms event delivery without unregistering the fd (cheaper than a
// full Close + NewPoll cycle if the caller intends to Start again soon).
func (p *Poll) Stop() error {
	p.stopHandle()
	return p.loop.backend.watcherStop(p.fd)
}

// Fd returns the watched file descriptor.
func (p *Poll) Fd() int { return p.fd }

func (p *Poll) deliver(events PollEvent, err error) {
	if p.cb != nil {
		p.cb(p, events, err)
	}
}
