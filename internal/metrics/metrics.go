package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for quiz sessions and flag resolution.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Flag cache lookups by result: "hit", "miss"
	CacheLookups *prometheus.CounterVec

	// Image source failures by HTTP status class
	ImageFetchErrors *prometheus.CounterVec

	ImageFetchLatency prometheus.Histogram

	// Resolutions dropped because their target was rebound
	StaleDiscards prometheus.Counter

	Rounds *prometheus.CounterVec

	ActiveSessions prometheus.Gauge
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagquiz_image_cache_lookups_total",
			Help: "Flag image cache lookups by result",
		}, []string{"result"}),

		ImageFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagquiz_image_fetch_errors_total",
			Help: "Flag image fetch failures by status class",
		}, []string{"class"}),

		ImageFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flagquiz_image_fetch_duration_seconds",
			Help:    "Duration of flag image fetches from the image source",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		StaleDiscards: factory.NewCounter(prometheus.CounterOpts{
			Name: "flagquiz_image_stale_discards_total",
			Help: "Resolved flag images dropped because the target moved on",
		}),

		Rounds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flagquiz_rounds_total",
			Help: "Generated rounds by kind",
		}, []string{"kind"}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flagquiz_active_sessions",
			Help: "Quiz sessions currently open",
		}),
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveFetch records an image source round trip; status 0 means a transport error.
func (m *Metrics) ObserveFetch(status int, d time.Duration) {
	if m == nil {
		return
	}
	m.ImageFetchLatency.Observe(d.Seconds())
	switch {
	case status == 0:
		m.ImageFetchErrors.WithLabelValues("transport").Inc()
	case status >= 500:
		m.ImageFetchErrors.WithLabelValues("5xx").Inc()
	case status >= 400:
		m.ImageFetchErrors.WithLabelValues("4xx").Inc()
	}
}

func (m *Metrics) StaleDiscard() {
	if m != nil {
		m.StaleDiscards.Inc()
	}
}

func (m *Metrics) Round(kind string) {
	if m != nil {
		m.Rounds.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}
