// simservice/metrics.go
package simservice

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the request counter, error counter and latency histogram shared by the routers of one
// process. The collectors are registered on a registry the caller owns, never the global default.
type Metrics struct {
	gatherer prometheus.Gatherer
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		gatherer: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"service", "method", "endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"service", "method", "endpoint"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "endpoint"}),
	}

	for _, collector := range []prometheus.Collector{m.requests, m.errors, m.latency} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("simservice: registering metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(service, method, endpoint string, isError bool, elapsed time.Duration) {
	m.requests.WithLabelValues(service, method, endpoint).Inc()
	if isError {
		m.errors.WithLabelValues(service, method, endpoint).Inc()
	}
	m.latency.WithLabelValues(service, endpoint).Observe(elapsed.Seconds())
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}

// MetricsMiddleware counts every request routed through it under service. A response with status 400
// or above counts as an error, as does a handler panic; a panic is answered with 500.
// The endpoint label is the route's path template, so path variables do not multiply the series.
func MetricsMiddleware(service string, metrics *Metrics, log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := endpointLabel(r)
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					log.Error("Handler panicked",
						zap.String("service", service),
						zap.String("endpoint", endpoint),
						zap.Any("panic", rec),
					)
					if !recorder.wroteHeader {
						writeDetail(recorder, http.StatusInternalServerError, "Internal Server Error")
					}
					metrics.observe(service, r.Method, endpoint, true, time.Since(start))
					return
				}
				metrics.observe(service, r.Method, endpoint, recorder.status >= http.StatusBadRequest, time.Since(start))
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

func endpointLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
