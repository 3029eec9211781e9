package uvloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyMetricsSampleBeforeWarmup(t *testing.T) {
	var m LatencyMetrics
	for _, d := range []time.Duration{1, 2, 3, 4} {
		m.Record(d * time.Millisecond)
	}
	count := m.Sample()
	require.Equal(t, 4, count)
	require.Equal(t, 4*time.Millisecond, m.Max)
}

func TestQueueMetricsTracksCurrentAndMax(t *testing.T) {
	var q QueueMetrics
	q.UpdatePending(3)
	q.UpdatePending(7)
	q.UpdatePending(2)
	require.Equal(t, 2, q.PendingCurrent)
	require.Equal(t, 7, q.PendingMax)

	q.UpdateWork(1)
	q.UpdateWork(5)
	require.Equal(t, 5, q.WorkCurrent)
	require.Equal(t, 5, q.WorkMax)
}

func TestTPSCounterRate(t *testing.T) {
	c := NewTPSCounter(time.Second, 100*time.Millisecond)
	for i := 0; i < 10; i++ {
		c.Increment()
	}
	require.Greater(t, c.Rate(), 0.0)
}

func TestNewTPSCounterPanicsOnInvalidArgs(t *testing.T) {
	require.Panics(t, func() { NewTPSCounter(0, time.Second) })
	require.Panics(t, func() { NewTPSCounter(time.Second, 0) })
	require.Panics(t, func() { NewTPSCounter(time.Second, 2*time.Second) })
}

func TestLoopMetricsRecordTickFeedsLatencyAndRate(t *testing.T) {
	m := newLoopMetrics()
	m.recordTick(5 * time.Millisecond)
	m.recordTick(7 * time.Millisecond)

	require.Equal(t, 2, m.TickLatency.Sample())
	require.Greater(t, m.Ticks.Rate(), 0.0)
}

func TestLoopWithMetricsRecordsTicks(t *testing.T) {
	loop, err := New(WithMetrics(true))
	require.NoError(t, err)
	defer loop.Close()

	require.NoError(t, loop.Run(RunOnce))
	require.NotNil(t, loop.metrics)
	require.Greater(t, loop.metrics.Ticks.Rate(), -1.0) // Rate is never negative; one recorded tick over the 10s window gives 0.1/s
}
