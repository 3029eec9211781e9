package uvloop

import "sync/atomic"

// HandleType tags the concrete variant of a Handle, used in place of open
// inheritance (spec.md §9 "Dynamic dispatch" — a closed enum of variants
// plus per-variant functions).
type HandleType int

const (
	HandleTimer HandleType = iota
	HandlePrepare
	HandleCheck
	HandleIdle
	HandleAsync
	HandlePoll
)

func (t HandleType) String() string {
	switch t {
	case HandleTimer:
		return "timer"
	case HandlePrepare:
		return "prepare"
	case HandleCheck:
		return "check"
	case HandleIdle:
		return "idle"
	case HandleAsync:
		return "async"
	case HandlePoll:
		return "poll"
	default:
		return "unknown"
	}
}

// handleFlags is the flag word described in spec.md §4.4: REF, ACTIVE,
// CLOSING, CLOSED, plus room for handle-specific bits. Stored atomically so
// Ref/Unref and the two-phase close protocol are safe to observe from
// HasRef/IsActive/IsClosing without taking the loop's attention (those are
// still loop-thread-only per spec.md §5, but atomics cost nothing and match
// the state.go idiom used elsewhere in this repo).
type handleFlags uint32

const (
	flagRef handleFlags = 1 << iota
	flagActive
	flagClosing
	flagClosed
	flagInternal
)

// closeImpl is the per-variant teardown hook invoked by Close before the
// handle is appended to the closing queue (spec.md §4.7 step 2): unarm any
// kernel registration, cancel in-flight requests, relinquish OS resources.
type closeImpl func(h *Handle)

// Handle is the common header embedded by every handle type (Timer,
// Prepare, Check, Idle, Async, Poll). It is never used standalone; each
// concrete type embeds *Handle and narrows the API per spec.md §6.
type Handle struct {
	loop  *Loop
	typ   HandleType
	flags atomic.Uint32

	closeCB func(h *Handle)
	onClose closeImpl // variant-specific close_impl, set by the constructor
	fireFn  func()    // variant-specific per-tick callback, set by the constructor

	// prev/next link this handle into loop.handles (always); wprev/wnext
	// link it, while linked, into exactly one worklist (idle/prepare/check/
	// async/closing per spec.md L3). A plain doubly linked intrusive list: handles are
	// long-lived and comparatively few, so the teacher's chunked-slab
	// ingress design (built for high-churn task queues) isn't a fit here;
	// see DESIGN.md.
	prev, next *Handle // global handles list
	wprev, wnext *Handle // current worklist, or nil if not linked into one
	onWorklist   *handleList
}

// handleList is an intrusive doubly linked circular list of handles,
// matching spec.md §9's description of loop queues.
type handleList struct {
	head *Handle
	len  int
}

func (l *handleList) pushBack(h *Handle) {
	if h.onWorklist == l {
		return // already linked in this exact list
	}
	if h.onWorklist != nil {
		h.onWorklist.remove(h)
	}
	h.onWorklist = l
	if l.head == nil {
		l.head = h
		h.wnext, h.wprev = h, h
	} else {
		tail := l.head.wprev
		tail.wnext = h
		h.wprev = tail
		h.wnext = l.head
		l.head.wprev = h
	}
	l.len++
}

func (l *handleList) remove(h *Handle) {
	if h.onWorklist != l {
		return
	}
	if h.wnext == h {
		l.head = nil
	} else {
		h.wprev.wnext = h.wnext
		h.wnext.wprev = h.wprev
		if l.head == h {
			l.head = h.wnext
		}
	}
	h.wnext, h.wprev, h.onWorklist = nil, nil, nil
	l.len--
}

func (l *handleList) forEach(fn func(*Handle)) {
	if l.head == nil {
		return
	}
	// Snapshot via a bounded walk so a callback that closes itself (valid
	// reentrancy per spec.md §4.1 step 2 note) doesn't corrupt the walk.
	h := l.head
	n := l.len
	for i := 0; i < n; i++ {
		next := h.wnext
		fn(h)
		h = next
	}
}

// initHandle links h into loop.handles and sets the initial flag state:
// REF on, not active, not closing (spec.md §4.4 handle_init).
func initHandle(loop *Loop, h *Handle, typ HandleType, onClose closeImpl) {
	h.loop = loop
	h.typ = typ
	h.onClose = onClose
	h.flags.Store(uint32(flagRef))
	loop.linkHandle(h)
}

// startHandle implements handle_start: if not already ACTIVE, sets ACTIVE
// and, if REF, bumps the loop's active-handle count (spec.md §4.4). Returns
// whether this call actually transitioned anything (idempotent per spec §7).
func (h *Handle) startHandle() bool {
	for {
		old := h.flags.Load()
		if old&uint32(flagActive) != 0 {
			return false
		}
		if !h.flags.CompareAndSwap(old, old|uint32(flagActive)) {
			continue
		}
		if old&uint32(flagRef) != 0 {
			h.loop.activeHandles.Add(1)
		}
		return true
	}
}

// stopHandle implements handle_stop, the inverse of startHandle.
func (h *Handle) stopHandle() bool {
	for {
		old := h.flags.Load()
		if old&uint32(flagActive) == 0 {
			return false
		}
		if !h.flags.CompareAndSwap(old, old&^uint32(flagActive)) {
			continue
		}
		if old&uint32(flagRef) != 0 {
			h.loop.activeHandles.Add(-1)
		}
		return true
	}
}

// Ref marks the handle as contributing to the loop's keep-alive count
// (spec.md §4.4 handle_ref). Default state is ref=on; Ref is only needed
// after a prior Unref.
func (h *Handle) Ref() {
	for {
		old := h.flags.Load()
		if old&uint32(flagRef) != 0 {
			return
		}
		if !h.flags.CompareAndSwap(old, old|uint32(flagRef)) {
			continue
		}
		if old&uint32(flagActive) != 0 {
			h.loop.activeHandles.Add(1)
		}
		return
	}
}

// Unref clears the REF flag; keep-alive contribution becomes false even if
// the handle remains ACTIVE (spec.md §4.4 handle_unref).
func (h *Handle) Unref() {
	for {
		old := h.flags.Load()
		if old&uint32(flagRef) == 0 {
			return
		}
		if !h.flags.CompareAndSwap(old, old&^uint32(flagRef)) {
			continue
		}
		if old&uint32(flagActive) != 0 {
			h.loop.activeHandles.Add(-1)
		}
		return
	}
}

// HasRef reports the current REF bit (original_source src/uv-common.c
// uv_has_ref read-back, supplemented per SPEC_FULL.md).
func (h *Handle) HasRef() bool { return h.flags.Load()&uint32(flagRef) != 0 }

// IsActive reports the current ACTIVE bit (original_source uv_is_active).
func (h *Handle) IsActive() bool { return h.flags.Load()&uint32(flagActive) != 0 }

// IsClosing reports the current CLOSING bit (original_source uv_is_closing).
func (h *Handle) IsClosing() bool { return h.flags.Load()&uint32(flagClosing) != 0 }

// Type returns the handle's variant tag.
func (h *Handle) Type() HandleType { return h.typ }

// Loop returns the owning loop. A handle belongs to exactly one loop for
// its entire lifetime (spec.md §3 invariant H1).
func (h *Handle) Loop() *Loop { return h.loop }

// Close begins the two-phase close protocol (spec.md §4.7). cb, if
// non-nil, is invoked in the loop's closing phase (the last phase of a
// tick) once the handle is fully CLOSED: in the current tick's closing
// phase when Close is called from a callback (cb is then not deferred to a
// later tick), else in the closing phase of the next tick Run executes.
// Calling Close on an already-closing handle is a no-op that still lets the
// original cb fire (spec §7).
func (h *Handle) Close(cb func(h *Handle)) {
	for {
		old := h.flags.Load()
		if old&uint32(flagClosing) != 0 {
			return // spec §7: close on already-closing handle is a no-op
		}
		if h.flags.CompareAndSwap(old, old|uint32(flagClosing)) {
			break
		}
	}
	h.closeCB = cb
	if h.onClose != nil {
		h.onClose(h)
	}
	h.loop.closing.pushBack(h)
}

// finishClose is invoked by the loop during the closing phase (spec §4.1
// step 9 / §4.7): sets CLOSED, clears ACTIVE, unlinks from the global
// handle list, and invokes the user's close-cb.
func (h *Handle) finishClose() {
	for {
		old := h.flags.Load()
		next := (old | uint32(flagClosed)) &^ uint32(flagActive)
		if h.flags.CompareAndSwap(old, next) {
			if old&uint32(flagActive) != 0 && old&uint32(flagRef) != 0 {
				h.loop.activeHandles.Add(-1)
			}
			break
		}
	}
	h.loop.unlinkHandle(h)
	cb := h.closeCB
	h.closeCB = nil
	if cb != nil {
		h.loop.safeInvoke(func() { cb(h) })
	}
}
