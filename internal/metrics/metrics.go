// Package metrics provides Prometheus metrics for the heat-map server.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"heatmap.tricitytransit.org/internal/graph"
)

const namespace = "heatmap"

// Build outcomes recorded by GraphBuildsTotal.
const (
	BuildSuccess  = "success"
	BuildFailure  = "failure"
	BuildFallback = "fallback"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	GraphStops         prometheus.Gauge
	GraphConnections   prometheus.Gauge
	GraphDepartures    prometheus.Gauge
	GraphEdges         prometheus.Gauge
	GraphBuildDuration prometheus.Histogram
	GraphBuildsTotal   *prometheus.CounterVec
	ExtractWarnings    *prometheus.CounterVec

	SearchDuration *prometheus.HistogramVec
	SearchSettled  prometheus.Histogram

	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		logger:   logger,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		GraphStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_stops",
			Help:      "Stops in the served schedule graph",
		}),
		GraphConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_connections",
			Help:      "Trip-run connections in the served schedule graph",
		}),
		GraphDepartures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_departures",
			Help:      "Scheduled departures in the served schedule graph",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Destination edges in the served schedule graph",
		}),
		GraphBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Time to fetch feeds and build the schedule graph",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		GraphBuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_builds_total",
			Help:      "Graph builds by outcome",
		}, []string{"result"}),
		ExtractWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_warnings_total",
			Help:      "Skipped stop-time rows and integrity errors by agency",
		}, []string{"agency", "kind"}),

		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Earliest-arrival and path search latency",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"mode"}),
		SearchSettled: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_settled_stops",
			Help:      "Stops settled per earliest-arrival search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),

		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_in_use",
			Help:      "Number of database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_wait_seconds_total",
			Help:      "Total time blocked waiting for a database connection",
		}),
	}

	m.Registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GraphStops,
		m.GraphConnections,
		m.GraphDepartures,
		m.GraphEdges,
		m.GraphBuildDuration,
		m.GraphBuildsTotal,
		m.ExtractWarnings,
		m.SearchDuration,
		m.SearchSettled,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)
	return m
}

// ObserveGraph sets the graph gauges from st.
func (m *Metrics) ObserveGraph(st graph.Stats) {
	if m == nil {
		return
	}
	m.GraphStops.Set(float64(st.Stops))
	m.GraphConnections.Set(float64(st.Connections))
	m.GraphDepartures.Set(float64(st.Departures))
	m.GraphEdges.Set(float64(st.Edges))
}

// ObserveBuild records one build attempt.
func (m *Metrics) ObserveBuild(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.GraphBuildsTotal.WithLabelValues(result).Inc()
	if result == BuildSuccess {
		m.GraphBuildDuration.Observe(d.Seconds())
	}
}

// ObserveSearch records one search. settled is ignored for path searches.
func (m *Metrics) ObserveSearch(mode string, d time.Duration, settled int) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(mode).Observe(d.Seconds())
	if settled > 0 {
		m.SearchSettled.Observe(float64(settled))
	}
}

// StartDBStatsCollector periodically copies the pool statistics of db into the
// DB gauges. Only the first call starts a collector; Shutdown stops it.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error("panic in DB stats collector", "error", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				if waitDelta := stats.WaitDuration - lastWaitDuration; waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector and waits for it. Safe to call repeatedly.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
