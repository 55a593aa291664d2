// Package metrics exposes Prometheus metrics for the status API and the
// agent loop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xagent"

// Collector owns the registry and every agent metric.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	interactions       *prometheus.CounterVec
	generationFailures *prometheus.CounterVec
	rateLimitDenials   *prometheus.CounterVec
	storeFallbacks     *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	queueDepth         prometheus.Gauge
}

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Interactions attempted against platform posts.",
		}, []string{"type", "success"}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Content generations that returned the failure sentinel.",
		}, []string{"kind"}),
		rateLimitDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_denials_total",
			Help:      "Requests skipped because the domain was in backoff.",
		}, []string{"domain"}),
		storeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "fallbacks_total",
			Help:      "Store operations served by the local fallback.",
		}, []string{"operation"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "step_duration_seconds",
			Help:      "Duration of orchestrator steps.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"step", "outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "due_articles",
			Help:      "Queued articles due at the last queue check.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.requestDuration,
		c.requestTotal,
		c.interactions,
		c.generationFailures,
		c.rateLimitDenials,
		c.storeFallbacks,
		c.stepDuration,
		c.queueDepth,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Interaction counts one interaction attempt.
func (c *Collector) Interaction(kind string, success bool) {
	c.interactions.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

// GenerationFailed counts a failed generation of kind.
func (c *Collector) GenerationFailed(kind string) {
	c.generationFailures.WithLabelValues(kind).Inc()
}

// RateLimitDenied counts a request skipped for domain.
func (c *Collector) RateLimitDenied(domain string) {
	c.rateLimitDenials.WithLabelValues(domain).Inc()
}

// StoreFallback counts an operation served by the fallback store.
func (c *Collector) StoreFallback(op string) {
	c.storeFallbacks.WithLabelValues(op).Inc()
}

// ObserveStep records how long an orchestrator step took.
func (c *Collector) ObserveStep(step string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.stepDuration.WithLabelValues(step, outcome).Observe(d.Seconds())
}

// SetDueArticles records the due queue size.
func (c *Collector) SetDueArticles(n int) {
	c.queueDepth.Set(float64(n))
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
