//go:build darwin

package uvloop

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type darwinWatcher struct {
	cb     func(PollEvent, error)
	events PollEvent
	armed  bool
	valid  bool
}

// kqueueBackend implements ioBackend on Darwin/BSD via kqueue, with the
// wake primitive as a dedicated EVFILT_USER event (grounded on
// poller_darwin.go's kqueue usage; wakeup_darwin.go used a self-pipe, but
// EVFILT_USER avoids the extra pipe fd and is the idiomatic kqueue wake).
type kqueueBackend struct {
	kq     int
	mu     sync.RWMutex
	fds    map[int]*darwinWatcher
	events [256]unix.Kevent_t
	closed atomic.Bool
}

func newIOBackend() ioBackend { return &kqueueBackend{fds: make(map[int]*darwinWatcher)} }

const wakeIdent = 1

func (b *kqueueBackend) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return WrapErrno(err)
	}
	unix.CloseOnExec(kq)
	b.kq = kq
	ev := unix.Kevent_t{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		_ = unix.Close(kq)
		return WrapErrno(err)
	}
	return nil
}

func (b *kqueueBackend) close() error {
	b.closed.Store(true)
	return WrapErrno(unix.Close(b.kq))
}

func (b *kqueueBackend) watcherInit(fd int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.fds[fd]; ok {
		return ErrExists
	}
	b.fds[fd] = &darwinWatcher{valid: true}
	return nil
}

func (b *kqueueBackend) watcherInvalidate(fd int) {
	b.mu.Lock()
	if w, ok := b.fds[fd]; ok && w.armed {
		b.unregisterLocked(fd, w.events)
	}
	delete(b.fds, fd)
	b.mu.Unlock()
}

func (b *kqueueBackend) unregisterLocked(fd int, events PollEvent) {
	var changes []unix.Kevent_t
	if events&PollReadable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if events&PollWritable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	if len(changes) > 0 {
		_, _ = unix.Kevent(b.kq, changes, nil, nil)
	}
}

func (b *kqueueBackend) watcherStart(fd int, events PollEvent, cb func(PollEvent, error)) error {
	b.mu.Lock()
	w, ok := b.fds[fd]
	if !ok {
		b.mu.Unlock()
		return ErrNotFound
	}
	if w.armed {
		b.unregisterLocked(fd, w.events)
	}
	w.cb = cb
	w.events = events
	w.armed = true
	b.mu.Unlock()

	var changes []unix.Kevent_t
	if events&PollReadable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE})
	}
	if events&PollWritable != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE})
	}
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return WrapErrno(err)
	}
	return nil
}

func (b *kqueueBackend) watcherStop(fd int) error {
	b.mu.Lock()
	w, ok := b.fds[fd]
	if !ok || !w.armed {
		b.mu.Unlock()
		return nil
	}
	b.unregisterLocked(fd, w.events)
	w.armed = false
	b.mu.Unlock()
	return nil
}

func (b *kqueueBackend) wake() error {
	ev := unix.Kevent_t{Ident: wakeIdent, Filter: unix.EVFILT_USER, Fflags: unix.NOTE_TRIGGER}
	_, err := unix.Kevent(b.kq, []unix.Kevent_t{ev}, nil, nil)
	return WrapErrno(err)
}

func (b *kqueueBackend) poll(timeoutMs int) (int, error) {
	if b.closed.Load() {
		return 0, ErrLoopTerminated
	}
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(b.kq, nil, b.events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, WrapErrno(err)
	}
	serviced := 0
	for i := 0; i < n; i++ {
		ev := b.events[i]
		if ev.Filter == unix.EVFILT_USER && ev.Ident == wakeIdent {
			continue
		}
		fd := int(ev.Ident)
		b.mu.RLock()
		w, ok := b.fds[fd]
		b.mu.RUnlock()
		if !ok || !w.armed || w.cb == nil {
			continue
		}
		var pe PollEvent
		switch ev.Filter {
		case unix.EVFILT_READ:
			pe = PollReadable
		case unix.EVFILT_WRITE:
			pe = PollWritable
		}
		var perr error
		if ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0 {
			pe |= PollDisconnect
			// Merge the requested readable/writable bits so the reader
			// path always fires and discovers the error itself (spec
			// §4.2), instead of the caller only observing PollDisconnect.
			pe |= w.events & (PollReadable | PollWritable)
			perr = ErrEOF
		}
		w.cb(pe, perr)
		serviced++
	}
	return serviced, nil
}
