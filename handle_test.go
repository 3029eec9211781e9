package uvloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandleRefUnref(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	timer := NewTimer(loop)
	require.True(t, timer.HasRef())
	require.False(t, timer.IsActive())

	require.NoError(t, timer.Start(1000, 0, func(*Timer) {}))
	require.True(t, timer.IsActive())
	require.EqualValues(t, 1, loop.activeHandles.Load())

	timer.Unref()
	require.False(t, timer.HasRef())
	require.EqualValues(t, 0, loop.activeHandles.Load())

	timer.Ref()
	require.True(t, timer.HasRef())
	require.EqualValues(t, 1, loop.activeHandles.Load())
}

func TestHandleStartStopIdempotent(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	idle := NewIdle(loop)
	require.NoError(t, idle.Start(func(*Idle) {}))
	require.True(t, idle.IsActive())

	// Starting again is a no-op per handle_start semantics.
	started := idle.startHandle()
	require.False(t, started)

	require.NoError(t, idle.Stop())
	require.False(t, idle.IsActive())
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	calls := 0
	timer := NewTimer(loop)
	timer.Close(func(*Handle) { calls++ })
	timer.Close(func(*Handle) { calls++ }) // no-op: already closing

	require.True(t, timer.IsClosing())
	require.False(t, timer.IsActive())

	require.NoError(t, loop.Run(RunNoWait)) // drains the closing queue
	require.Equal(t, 1, calls)
	require.NoError(t, loop.Close())
}

// Reproduces the scenario a reviewer flagged: closing a started handle must
// release its contribution to activeHandles, or Run(RunDefault) never
// observes the loop going idle and blocks forever (spec invariant P4/L1).
func TestHandleCloseAfterStartDecrementsActiveHandles(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	timer := NewTimer(loop)
	require.NoError(t, timer.Start(1000, 0, func(*Timer) {}))
	require.EqualValues(t, 1, loop.activeHandles.Load())

	timer.Close(nil)
	require.EqualValues(t, 1, loop.activeHandles.Load()) // not yet: close finishes on next tick

	done := make(chan error, 1)
	go func() { done <- loop.Run(RunDefault) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run(RunDefault) never returned after closing the only active handle")
	}
	require.EqualValues(t, 0, loop.activeHandles.Load())
}

func TestHandleListPushRemoveForEach(t *testing.T) {
	var list handleList
	a := &Handle{}
	b := &Handle{}
	c := &Handle{}

	list.pushBack(a)
	list.pushBack(b)
	list.pushBack(c)
	require.Equal(t, 3, list.len)

	var seen []*Handle
	list.forEach(func(h *Handle) { seen = append(seen, h) })
	require.Equal(t, []*Handle{a, b, c}, seen)

	list.remove(b)
	require.Equal(t, 2, list.len)

	seen = nil
	list.forEach(func(h *Handle) { seen = append(seen, h) })
	require.Equal(t, []*Handle{a, c}, seen)
}
