package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	OutcomeOK                  = "ok"
	OutcomeNodeNotFound        = "node_not_found"
	OutcomeDifferentComponents = "different_components"
	OutcomeNoPath              = "no_path"
	OutcomeTimeout             = "timeout"
)

// Monitor holds the process-wide diagnostics. Build one in main and pass it down.
// A nil *Monitor is valid and records nothing.
type Monitor struct {
	reg *prometheus.Registry

	queries      *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	settled      *prometheus.HistogramVec
	graphSize    *prometheus.GaugeVec
	skippedEdges prometheus.Gauge
	heapInUse    *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewMonitor(reg *prometheus.Registry) *Monitor {
	m := &Monitor{
		reg: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigatorx",
			Name:      "route_queries_total",
			Help:      "Route queries by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navigatorx",
			Name:      "route_query_duration_seconds",
			Help:      "Route query latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"algorithm"}),
		settled: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navigatorx",
			Name:      "route_settled_nodes",
			Help:      "Nodes settled per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"algorithm"}),
		graphSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "navigatorx",
			Name:      "graph_loaded_rows",
			Help:      "Rows loaded into the road network by table.",
		}, []string{"table"}),
		skippedEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "navigatorx",
			Name:      "graph_skipped_edges",
			Help:      "Edges dropped at load because an endpoint is unknown.",
		}),
		heapInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "navigatorx",
			Name:      "heap_inuse_bytes",
			Help:      "Heap in use sampled at load milestones.",
		}, []string{"stage"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "navigatorx",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"path", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "navigatorx",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
	reg.MustRegister(m.queries, m.latency, m.settled, m.graphSize, m.skippedEdges, m.heapInUse,
		m.httpRequests, m.httpDuration)
	return m
}

func (m *Monitor) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Monitor) ObserveQuery(algorithm, outcome string, d time.Duration, settledNodes int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(algorithm, outcome).Inc()
	m.latency.WithLabelValues(algorithm).Observe(d.Seconds())
	if settledNodes > 0 {
		m.settled.WithLabelValues(algorithm).Observe(float64(settledNodes))
	}
}

func (m *Monitor) SetLoaded(table string, rows int) {
	if m == nil {
		return
	}
	m.graphSize.WithLabelValues(table).Set(float64(rows))
}

func (m *Monitor) SetSkippedEdges(n int) {
	if m == nil {
		return
	}
	m.skippedEdges.Set(float64(n))
}

func (m *Monitor) ObserveHTTP(path, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, code).Inc()
	m.httpDuration.WithLabelValues(path).Observe(d.Seconds())
}

// SampleMemory records and logs heap usage at a named stage.
func (m *Monitor) SampleMemory(stage string, log *zap.Logger) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if log != nil {
		log.Info("memory usage", zap.String("stage", stage), zap.Uint64("heapInUseMB", ms.HeapInuse/1024/1024))
	}
	if m == nil {
		return
	}
	m.heapInUse.WithLabelValues(stage).Set(float64(ms.HeapInuse))
}
