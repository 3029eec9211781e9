package uvloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopRunDefaultStopsWhenNoActiveHandles(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	require.NoError(t, loop.Run(RunDefault))
}

func TestLoopRunOnceRunsExactlyOneTick(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	ticks := 0
	check := NewCheck(loop)
	require.NoError(t, check.Start(func(*Check) { ticks++ }))

	// The active check handle keeps the loop alive, so RunOnce blocks in the
	// poll until something is ready; a pending wake makes the poll return.
	loop.wakeup()
	require.NoError(t, loop.Run(RunOnce))
	require.Equal(t, 1, ticks)
}

func TestLoopRunNoWaitDoesNotBlock(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, loop.Run(RunNoWait))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunNoWait blocked")
	}
}

func TestLoopReentrantRunRejected(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var reentrantErr error
	idle := NewIdle(loop)
	require.NoError(t, idle.Start(func(*Idle) {
		reentrantErr = loop.Run(RunDefault)
		idle.Stop()
	}))

	require.NoError(t, loop.Run(RunOnce))
	require.ErrorIs(t, reentrantErr, ErrReentrantRun)
}

func TestLoopIdlePrepareCheckOrdering(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	var order []string
	idle := NewIdle(loop)
	prepare := NewPrepare(loop)
	check := NewCheck(loop)

	require.NoError(t, idle.Start(func(*Idle) { order = append(order, "idle") }))
	require.NoError(t, prepare.Start(func(*Prepare) { order = append(order, "prepare") }))
	require.NoError(t, check.Start(func(*Check) {
		order = append(order, "check")
		idle.Stop()
		prepare.Stop()
		check.Stop()
	}))

	require.NoError(t, loop.Run(RunOnce))
	require.Equal(t, []string{"idle", "prepare", "check"}, order)
}

func TestLoopQueueWorkRoundTripsThroughThreadPool(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	resultCh := make(chan int, 1)
	loop.QueueWork(RequestFast, func() (interface{}, error) {
		return 42, nil
	}, func(result interface{}, err error) {
		require.NoError(t, err)
		resultCh <- result.(int)
		loop.Stop()
	})

	require.NoError(t, loop.Run(RunDefault))
	select {
	case v := <-resultCh:
		require.Equal(t, 42, v)
	default:
		t.Fatal("after callback never fired")
	}
}

func TestLoopStopEndsRunDefaultImmediately(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fires := 0
	timer := NewTimer(loop)
	require.NoError(t, timer.Start(1, 1, func(*Timer) {
		fires++
		if fires == 1 {
			loop.Stop()
		}
	}))

	require.NoError(t, loop.Run(RunDefault))
	require.Equal(t, 1, fires)
}

func TestLoopWalkVisitsLiveHandles(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	_ = NewTimer(loop)
	_ = NewIdle(loop)

	var types []HandleType
	loop.Walk(func(h *Handle) { types = append(types, h.Type()) })
	require.Len(t, types, 2)
}
