// Package metrics provides Prometheus metrics for the coin cache engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto_backend/internal/feature/coins/usecase"
)

const DefaultNamespace = "crypto_backend"

// Metrics holds all Prometheus metrics of the service. It implements usecase.Metrics.
type Metrics struct {
	// Engine metrics
	PagesFetched   *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	CachePurges    prometheus.Counter
	DetailUpdates  prometheus.Counter
	RefreshRuns    prometheus.Counter
	RefreshChunks  prometheus.Histogram
	RefreshFailed  prometheus.Counter
	ActiveListings prometheus.Gauge

	// Remote API metrics
	RemoteLatency *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ usecase.Metrics = (*Metrics)(nil)

// NewMetrics registers every metric on reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "pages_fetched_total",
			Help:      "Total number of remote pages persisted, by origin",
		}, []string{"origin"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed remote fetches, by origin",
		}, []string{"origin"}),
		CachePurges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "purges_total",
			Help:      "Total number of expired cache purges",
		}),
		DetailUpdates: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "detail_updates_total",
			Help:      "Total number of coin detail rows written",
		}),
		RefreshRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of completed bulk refreshes",
		}),
		RefreshChunks: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "chunks",
			Help:      "Number of chunks fetched per bulk refresh",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		RefreshFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "failed_chunks_total",
			Help:      "Total number of bulk refresh chunks that failed",
		}),
		ActiveListings: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "active",
			Help:      "Current number of open listing sessions",
		}),
		RemoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Latency of remote API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		gatherer: reg,
	}
}

func (m *Metrics) PageFetched(origin string) {
	m.PagesFetched.WithLabelValues(origin).Inc()
}

func (m *Metrics) FetchFailed(origin string) {
	m.FetchErrors.WithLabelValues(origin).Inc()
}

func (m *Metrics) CachePurged() {
	m.CachePurges.Inc()
}

func (m *Metrics) DetailUpdated() {
	m.DetailUpdates.Inc()
}

func (m *Metrics) RefreshCompleted(chunks int, failed int) {
	m.RefreshRuns.Inc()
	m.RefreshChunks.Observe(float64(chunks))
	m.RefreshFailed.Add(float64(failed))
}

// ListingOpened and ListingClosed track open listing sessions.
func (m *Metrics) ListingOpened() { m.ActiveListings.Inc() }

func (m *Metrics) ListingClosed() { m.ActiveListings.Dec() }

// InstrumentRoundTripper records the latency of every request made through next.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperDuration(m.RemoteLatency, next)
}

// Handler returns the HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
