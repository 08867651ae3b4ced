// Package metrics exposes Prometheus metrics for the calendar service on a
// private registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the registered collectors.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	eventsLoaded     prometheus.Gauge
	refreshTotal     *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	refreshLastUnix  prometheus.Gauge
	sessionsActive   prometheus.Gauge
	sessionActions   *prometheus.CounterVec
	feedFetches      *prometheus.CounterVec
	snapshotCaptures *prometheus.CounterVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

// WithRegistry registers collectors on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithHistogramBuckets overrides the duration buckets (seconds).
func WithHistogramBuckets(b []float64) Option {
	return func(m *Manager) { m.histogramBuckets = b }
}

var global = NewManager() //nolint:gochecknoglobals // process-wide metrics

// NewManager builds and registers every collector.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hilalcal",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.init()
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.eventsLoaded = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "events_loaded",
		Help:      "Published events in the current snapshot",
	})

	m.refreshTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "refresh_total",
		Help:      "Snapshot refreshes by result",
	}, []string{"result"})

	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "refresh_duration_seconds",
		Help:      "Time spent loading the published event set",
		Buckets:   m.histogramBuckets,
	})

	m.refreshLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "refresh_last_unixtime",
		Help:      "Unix time of the last successful refresh",
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "web",
		Name:      "sessions_active",
		Help:      "Open calendar sessions",
	})

	m.sessionActions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "web",
		Name:      "session_actions_total",
		Help:      "Session actions by name and result",
	}, []string{"action", "result"})

	m.feedFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ics",
		Name:      "feed_fetches_total",
		Help:      "ICS feed fetches by feed and result (ok, not_modified, cache, error)",
	}, []string{"feed", "result"})

	m.snapshotCaptures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "capture",
		Name:      "snapshots_total",
		Help:      "Page captures by result",
	}, []string{"result"})
}

// Registry returns the registry the collectors live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// GetRegistry returns the process-wide registry for promhttp.
func GetRegistry() *prometheus.Registry { return global.registry }

// RecordHTTPRequest counts one request and observes its latency.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	global.httpRequests.WithLabelValues(route, method, status).Inc()
	global.httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// UpdateEventsLoaded sets the snapshot size.
func UpdateEventsLoaded(n int) {
	global.eventsLoaded.Set(float64(n))
}

// RecordRefresh counts a refresh; ok false records a failure.
func RecordRefresh(ok bool, seconds float64, unix int64) {
	if !ok {
		global.refreshTotal.WithLabelValues("error").Inc()
		return
	}
	global.refreshTotal.WithLabelValues("ok").Inc()
	global.refreshDuration.Observe(seconds)
	global.refreshLastUnix.Set(float64(unix))
}

// UpdateSessionsActive sets the open session count.
func UpdateSessionsActive(n int) {
	global.sessionsActive.Set(float64(n))
}

// RecordSessionAction counts a session action.
func RecordSessionAction(action, result string) {
	global.sessionActions.WithLabelValues(action, result).Inc()
}

// RecordFeedFetch counts a feed fetch.
func RecordFeedFetch(feed, result string) {
	global.feedFetches.WithLabelValues(feed, result).Inc()
}

// RecordSnapshot counts a page capture.
func RecordSnapshot(ok bool) {
	if ok {
		global.snapshotCaptures.WithLabelValues("ok").Inc()
		return
	}
	global.snapshotCaptures.WithLabelValues("error").Inc()
}
