package uvloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOptionsDefaults(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.slowWorkCap)
	require.GreaterOrEqual(t, cfg.threadPoolSize, 2)
	require.LessOrEqual(t, cfg.threadPoolSize, 8)
	require.False(t, cfg.metricsEnabled)
}

func TestWithThreadPoolSizeRejectsInvalid(t *testing.T) {
	_, err := resolveOptions([]Option{WithThreadPoolSize(0)})
	require.Error(t, err)

	cfg, err := resolveOptions([]Option{WithThreadPoolSize(3)})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.threadPoolSize)
}

func TestWithSlowWorkCapRejectsInvalid(t *testing.T) {
	_, err := resolveOptions([]Option{WithSlowWorkCap(-1)})
	require.Error(t, err)

	cfg, err := resolveOptions([]Option{WithSlowWorkCap(10)})
	require.NoError(t, err)
	require.Equal(t, 10, cfg.slowWorkCap)
}

func TestWithMetricsEnablesCollection(t *testing.T) {
	cfg, err := resolveOptions([]Option{WithMetrics(true)})
	require.NoError(t, err)
	require.True(t, cfg.metricsEnabled)

	loop, err := New(WithMetrics(true))
	require.NoError(t, err)
	defer loop.Close()
	require.NotNil(t, loop.metrics)
}

func TestNilOptionIsIgnored(t *testing.T) {
	cfg, err := resolveOptions([]Option{nil, WithThreadPoolSize(2)})
	require.NoError(t, err)
	require.Equal(t, 2, cfg.threadPoolSize)
}
