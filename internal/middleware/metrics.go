package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	requestsInFlight    prometheus.Gauge
	analysesTotal       *prometheus.CounterVec
	analysisDuration    prometheus.Histogram
	gallerySize         prometheus.Gauge
	persistenceDuration prometheus.Histogram
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leafdoctor_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leafdoctor_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		requestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "leafdoctor_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		analysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leafdoctor_analyses_total",
			Help: "Inference calls by outcome",
		}, []string{"outcome"}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leafdoctor_analysis_duration_seconds",
			Help:    "Inference call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		gallerySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "leafdoctor_gallery_items",
			Help: "Items in the gallery",
		}),
		persistenceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "leafdoctor_persistence_duration_seconds",
			Help:    "Duration of gallery writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		start := time.Now()
		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(route, statusBucket(wrapped.statusCode)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	m.analysesTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) SetGallerySize(n int) {
	m.gallerySize.Set(float64(n))
}

func (m *Metrics) ObservePersistence(d time.Duration) {
	m.persistenceDuration.Observe(d.Seconds())
}

// TrackSessions exposes the live session count, read at scrape time.
func (m *Metrics) TrackSessions(reg *prometheus.Registry, count func() int) {
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "leafdoctor_sessions",
		Help: "Live analyzer sessions",
	}, func() float64 { return float64(count()) })
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
