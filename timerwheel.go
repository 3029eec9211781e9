package uvloop

// timerWheel is the hierarchical cascading timer wheel described in
// spec.md §4.3: a redesign of original_source's min-heap (src/timer.c,
// heap-min.h) into the classic Linux-kernel-style wheel — tv1 with 256
// 1ms slots for near-term timers, cascading into tv2..tv5 with 64 slots
// each at 2^8, 2^14, 2^20, 2^26 ms granularity. A timer due further out
// than tv1's horizon lives in a coarser wheel until cascade() moves it
// down; this trades O(log n) heap insert/extract for O(1) amortized at
// the cost of the cascade walk, which only fires once per tv1 wrap.
const (
	tv1Bits = 8
	tv1Size = 1 << tv1Bits // 256
	tvnBits = 6
	tvnSize = 1 << tvnBits // 64
	tvnMask = tvnSize - 1
)

// wheelTimer is the per-timer bookkeeping the wheel needs: its absolute
// deadline in milliseconds on the loop's monotonic clock, and the
// intrusive slot-list links.
type wheelTimer struct {
	deadline uint64
	timer    *Timer
	prev, next *wheelTimer
	slotList   *wheelSlotList // nil when not linked into any slot
}

type wheelSlotList struct {
	head *wheelTimer
}

func (l *wheelSlotList) pushBack(t *wheelTimer) {
	t.slotList = l
	if l.head == nil {
		l.head = t
		t.next, t.prev = t, t
		return
	}
	tail := l.head.prev
	tail.next = t
	t.prev = tail
	t.next = l.head
	l.head.prev = t
}

func (l *wheelSlotList) remove(t *wheelTimer) {
	if t.slotList != l {
		return
	}
	if t.next == t {
		l.head = nil
	} else {
		t.prev.next = t.next
		t.next.prev = t.prev
		if l.head == t {
			l.head = t.next
		}
	}
	t.next, t.prev, t.slotList = nil, nil, nil
}

// timerWheel holds tv1 (fine) plus tv2..tv5 (cascading, coarser) slot
// arrays, and the current wheel time (the next millisecond tick to process).
type timerWheel struct {
	tv1 [tv1Size]wheelSlotList
	tvn [4][tvnSize]wheelSlotList // tv2, tv3, tv4, tv5

	now uint64 // wheel clock, in milliseconds, advanced by Advance()
	idx [5]uint64 // not read: cascade slots are derived from now

	byTimer map[*Timer]*wheelTimer
}

func newTimerWheel(now uint64) *timerWheel {
	return &timerWheel{now: now, byTimer: make(map[*Timer]*wheelTimer)}
}

// index computes which wheel (0=tv1, 1..4=tvn) and slot a deadline falls
// into relative to the wheel's current time, following the classic kernel
// cascading-wheel bucketing rule.
func (w *timerWheel) index(deadline uint64) (wheel int, slot int) {
	if deadline < w.now {
		// Already due: bucket into the next tv1 slot Advance will visit.
		deadline = w.now
	}
	delta := deadline - w.now
	switch {
	case delta < tv1Size:
		return 0, int(deadline & (tv1Size - 1))
	case delta < 1<<(tv1Bits+tvnBits):
		return 1, int((deadline >> tv1Bits) & tvnMask)
	case delta < 1<<(tv1Bits+2*tvnBits):
		return 2, int((deadline >> (tv1Bits + tvnBits)) & tvnMask)
	case delta < 1<<(tv1Bits+3*tvnBits):
		return 3, int((deadline >> (tv1Bits + 2*tvnBits)) & tvnMask)
	default:
		// Further out than tv5's horizon: clamp into tv5's last slot; it
		// will cascade down again on its next pass, same as the kernel
		// wheel does for timers scheduled absurdly far in the future.
		if delta > 1<<(tv1Bits+4*tvnBits)-1 {
			deadline = w.now + 1<<(tv1Bits+4*tvnBits) - 1
		}
		return 4, int((deadline >> (tv1Bits + 3*tvnBits)) & tvnMask)
	}
}

func (w *timerWheel) slotFor(wheel, slot int) *wheelSlotList {
	if wheel == 0 {
		return &w.tv1[slot]
	}
	return &w.tvn[wheel-1][slot]
}

// Insert schedules t to fire at deadline (absolute wheel-clock milliseconds).
func (w *timerWheel) Insert(t *Timer, deadline uint64) {
	w.Cancel(t)
	wt := &wheelTimer{deadline: deadline, timer: t}
	wheel, slot := w.index(deadline)
	w.slotFor(wheel, slot).pushBack(wt)
	w.byTimer[t] = wt
}

// Cancel removes t from the wheel, if present. Idempotent.
func (w *timerWheel) Cancel(t *Timer) {
	wt, ok := w.byTimer[t]
	if !ok {
		return
	}
	if wt.slotList != nil {
		wt.slotList.remove(wt)
	}
	delete(w.byTimer, t)
}

// cascade moves every timer in tvn[wheel][slot] down one level, re-indexing
// each against the (now-advanced) wheel clock. Invoked when a coarser
// wheel's slot pointer wraps past zero, per the classic algorithm.
func (w *timerWheel) cascade(wheel, slot int) {
	list := &w.tvn[wheel][slot]
	var timers []*wheelTimer
	for t := list.head; t != nil; {
		next := t.next
		if next == list.head {
			next = nil
		}
		timers = append(timers, t)
		t = next
	}
	for _, wt := range timers {
		list.remove(wt)
		nwheel, nslot := w.index(wt.deadline)
		w.slotFor(nwheel, nslot).pushBack(wt)
	}
}

// Advance moves the wheel clock forward to target (milliseconds) and
// returns every Timer whose deadline is now <= target, extracted from
// tv1's slots (cascading down from tvn first as needed). This is the
// wheel's equivalent of spec §4.1 step 1 "Run due timers": the loop calls
// Advance once per tick with its updated Now().
func (w *timerWheel) Advance(target uint64) []*Timer {
	if len(w.byTimer) == 0 {
		w.now = target + 1
		return nil
	}
	var due []*Timer
	for w.now <= target {
		slot := int(w.now & (tv1Size - 1))
		if slot == 0 && w.now != 0 {
			w.cascadeLevel(1)
		}
		list := &w.tv1[slot]
		for list.head != nil {
			wt := list.head
			list.remove(wt)
			delete(w.byTimer, wt.timer)
			due = append(due, wt.timer)
		}
		w.now++
	}
	w.now = target + 1
	return due
}

// cascadeLevel walks up from tvn level `level` (1-indexed: tv2=1..tv5=4),
// cascading each level whose slot pointer has wrapped.
func (w *timerWheel) cascadeLevel(level int) {
	if level > 4 {
		return
	}
	shift := uint(tv1Bits + (level-1)*tvnBits)
	slot := int((w.now >> shift) & tvnMask)
	w.cascade(level-1, slot)
	if slot == 0 {
		w.cascadeLevel(level + 1)
	}
}

// NextTimeout reports the number of milliseconds until the earliest
// scheduled timer, or -1 if the wheel is empty (spec §4.1 step 6: feeds
// the I/O backend's poll timeout computation).
func (w *timerWheel) NextTimeout() int64 {
	if len(w.byTimer) == 0 {
		return -1
	}
	var min uint64 = ^uint64(0)
	for _, wt := range w.byTimer {
		if wt.deadline < min {
			min = wt.deadline
		}
	}
	if min <= w.now {
		return 0
	}
	return int64(min - w.now)
}

func (w *timerWheel) Len() int { return len(w.byTimer) }
