package uvloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerWheelInsertAdvanceFiresInOrder(t *testing.T) {
	w := newTimerWheel(0)

	t1 := &Timer{}
	t2 := &Timer{}
	t3 := &Timer{}

	w.Insert(t1, 10)
	w.Insert(t2, 5)
	w.Insert(t3, 500) // lands in a coarser tvn wheel, must cascade down

	due := w.Advance(5)
	require.Equal(t, []*Timer{t2}, due)

	due = w.Advance(10)
	require.Equal(t, []*Timer{t1}, due)

	due = w.Advance(500)
	require.Equal(t, []*Timer{t3}, due)

	require.Equal(t, 0, w.Len())
}

func TestTimerWheelCancelBeforeFire(t *testing.T) {
	w := newTimerWheel(0)
	timer := &Timer{}
	w.Insert(timer, 50)
	w.Cancel(timer)

	due := w.Advance(100)
	require.Empty(t, due)
	require.Equal(t, 0, w.Len())
}

func TestTimerWheelNextTimeout(t *testing.T) {
	w := newTimerWheel(0)
	require.EqualValues(t, -1, w.NextTimeout())

	timer := &Timer{}
	w.Insert(timer, 20)
	require.EqualValues(t, 20, w.NextTimeout())

	w.Advance(20)
	require.EqualValues(t, -1, w.NextTimeout())
}

func TestTimerWheelReinsertCancelsPrevious(t *testing.T) {
	w := newTimerWheel(0)
	timer := &Timer{}
	w.Insert(timer, 10)
	w.Insert(timer, 20) // re-arm: must not fire twice

	due := w.Advance(10)
	require.Empty(t, due)

	due = w.Advance(20)
	require.Equal(t, []*Timer{timer}, due)
}
