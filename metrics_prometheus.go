package uvloop

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts a Loop's optional loopMetrics into Prometheus
// collectors, so a host application can register it with its own registry.
// Grounded on the metrics-export pattern in the ChuLiYu-raft-recovery
// example repo's use of prometheus/client_golang: one struct implementing
// prometheus.Collector, gauges computed from live state in Collect rather
// than updated eagerly, avoiding a second bookkeeping path.
type PrometheusCollector struct {
	loop *Loop

	activeHandles *prometheus.Desc
	pendingDepth  *prometheus.Desc
	workDepth     *prometheus.Desc
	tickRate      *prometheus.Desc
	tickP99       *prometheus.Desc
}

// NewPrometheusCollector builds a collector for loop. loop must have been
// constructed with WithMetrics(true); otherwise Collect emits nothing.
func NewPrometheusCollector(loop *Loop) *PrometheusCollector {
	const ns = "uvloop"
	return &PrometheusCollector{
		loop: loop,
		activeHandles: prometheus.NewDesc(
			ns+"_active_handles", "Number of active, ref'd handles keeping the loop alive.", nil, nil),
		pendingDepth: prometheus.NewDesc(
			ns+"_pending_queue_depth", "Current depth of the pending-callback queue.", nil, nil),
		workDepth: prometheus.NewDesc(
			ns+"_work_queue_depth", "Current depth of the thread-pool work queue.", nil, nil),
		tickRate: prometheus.NewDesc(
			ns+"_tick_rate", "Loop ticks per second over a rolling window.", nil, nil),
		tickP99: prometheus.NewDesc(
			ns+"_tick_latency_p99_seconds", "P99 tick latency in seconds.", nil, nil),
	}
}

func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeHandles
	ch <- c.pendingDepth
	ch <- c.workDepth
	ch <- c.tickRate
	ch <- c.tickP99
}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.loop.metrics
	if m == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.activeHandles, prometheus.GaugeValue, float64(c.loop.activeHandles.Load()))

	m.Queue.mu.RLock()
	pending, work := m.Queue.PendingCurrent, m.Queue.WorkCurrent
	m.Queue.mu.RUnlock()
	ch <- prometheus.MustNewConstMetric(c.pendingDepth, prometheus.GaugeValue, float64(pending))
	ch <- prometheus.MustNewConstMetric(c.workDepth, prometheus.GaugeValue, float64(work))

	ch <- prometheus.MustNewConstMetric(c.tickRate, prometheus.GaugeValue, m.Ticks.Rate())

	m.TickLatency.Sample()
	m.TickLatency.mu.RLock()
	p99 := m.TickLatency.P99.Seconds()
	m.TickLatency.mu.RUnlock()
	ch <- prometheus.MustNewConstMetric(c.tickP99, prometheus.GaugeValue, p99)
}
