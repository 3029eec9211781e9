package uvloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerOneShotFires(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := 0
	timer := NewTimer(loop)
	require.NoError(t, timer.Start(5, 0, func(*Timer) {
		fired++
		loop.Stop()
	}))

	require.NoError(t, loop.Run(RunDefault))
	require.Equal(t, 1, fired)
	require.False(t, timer.IsActive())
}

func TestTimerRepeatFiresMultipleTimes(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := 0
	timer := NewTimer(loop)
	require.NoError(t, timer.Start(2, 2, func(tm *Timer) {
		fired++
		if fired >= 3 {
			loop.Stop()
		}
	}))

	require.NoError(t, loop.Run(RunDefault))
	require.GreaterOrEqual(t, fired, 3)
	require.True(t, timer.IsActive())
}

func TestTimerStopPreventsFire(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	fired := false
	timer := NewTimer(loop)
	require.NoError(t, timer.Start(1000, 0, func(*Timer) { fired = true }))
	require.NoError(t, timer.Stop())
	require.False(t, timer.IsActive())

	require.NoError(t, loop.Run(RunNoWait))
	require.False(t, fired)
}

func TestTimerAgainRequiresRepeatInterval(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	defer loop.Close()

	timer := NewTimer(loop)
	require.Error(t, timer.Again()) // never started

	require.NoError(t, timer.Start(5, 0, func(*Timer) {}))
	require.Error(t, timer.Again()) // repeat == 0
}
