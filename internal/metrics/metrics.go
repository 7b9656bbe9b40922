package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	EnrollmentOutcomes   *prometheus.CounterVec
	EnrollmentLatency    prometheus.Histogram
	CounterDrift         prometheus.Counter
	KafkaPublishFailures *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the service metrics on reg. Pass a fresh registry in tests.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EnrollmentOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "petevents_enrollment_outcomes_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"status"}),
		EnrollmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "petevents_enrollment_duration_seconds",
			Help:    "Time spent resolving an enrollment attempt",
			Buckets: prometheus.DefBuckets,
		}),
		CounterDrift: factory.NewCounter(prometheus.CounterOpts{
			Name: "petevents_enrolled_count_drift_total",
			Help: "Reconciliations that found enrolled_count out of sync with enrollment rows",
		}),
		KafkaPublishFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "petevents_kafka_publish_failures_total",
			Help: "Domain messages that could not be published",
		}, []string{"topic"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "petevents_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "petevents_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
}

// NewDefault registers on a new registry that also carries the Go and process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEnrollment(status string, seconds float64) {
	m.EnrollmentOutcomes.WithLabelValues(status).Inc()
	m.EnrollmentLatency.Observe(seconds)
}

func (m *Metrics) ObserveDrift() {
	m.CounterDrift.Inc()
}

func (m *Metrics) ObservePublishFailure(topic string) {
	m.KafkaPublishFailures.WithLabelValues(topic).Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
