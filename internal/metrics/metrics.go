// Package metrics provides Prometheus metrics for the annotation editor
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the editor service
type Metrics struct {
	// HTTP request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Annotation mutation metrics
	AnnotationsCreated *prometheus.CounterVec
	AnnotationsUpdated prometheus.Counter
	AnnotationsDeleted prometheus.Counter

	// History metrics
	UndosTotal   prometheus.Counter
	RedosTotal   prometheus.Counter
	HistoryDepth prometheus.Gauge

	// Document service metrics
	RenderDuration  prometheus.Histogram
	SaveDuration    prometheus.Histogram
	PageCacheHits   prometheus.Counter
	PageCacheMisses prometheus.Counter

	// Session metrics
	OpenSessions prometheus.Gauge
}

// New creates and registers all editor metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagemark_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagemark_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.RequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagemark_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.AnnotationsCreated = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagemark_annotations_created_total",
			Help: "Total number of annotations created, by kind",
		},
		[]string{"kind"},
	)

	m.AnnotationsUpdated = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_annotations_updated_total",
			Help: "Total number of annotation updates",
		},
	)

	m.AnnotationsDeleted = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_annotations_deleted_total",
			Help: "Total number of annotations deleted",
		},
	)

	m.UndosTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_undos_total",
			Help: "Total number of undo operations",
		},
	)

	m.RedosTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_redos_total",
			Help: "Total number of redo operations",
		},
	)

	m.HistoryDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagemark_history_depth",
			Help: "Number of history snapshots in the most recently touched session",
		},
	)

	m.RenderDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagemark_render_duration_seconds",
			Help:    "Duration of page render fetches in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	m.SaveDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagemark_save_duration_seconds",
			Help:    "Duration of annotation saves in seconds",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.PageCacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_page_cache_hits_total",
			Help: "Page render requests served from the raster cache",
		},
	)

	m.PageCacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "pagemark_page_cache_misses_total",
			Help: "Page render requests that required a document service round trip",
		},
	)

	m.OpenSessions = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagemark_open_sessions",
			Help: "Number of currently open editor sessions",
		},
	)

	return m
}

// RecordRequest records one completed HTTP request.
func (m *Metrics) RecordRequest(method string, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
