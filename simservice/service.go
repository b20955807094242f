// simservice/service.go
/* Package simservice implements the three simulated HTTP services the load driver is pointed at:
service1 serves data and fans out to the other two, service2 processes with variable latency and
service3 accepts submissions. Failure rates, latency and downstream URLs are configurable so tests
can make every behavior deterministic. */
package simservice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	Service1 = "service1"
	Service2 = "service2"
	Service3 = "service3"
)

const (
	DefaultDataFailureRate    = 0.10
	DefaultProcessFailureRate = 0.05
	DefaultProcessMinLatency  = 100 * time.Millisecond
	DefaultProcessMaxLatency  = 500 * time.Millisecond
	DefaultService2URL        = "http://service2:8001"
	DefaultService3URL        = "http://service3:8002"
	DefaultFanoutTimeout      = 1 * time.Second
	DefaultFanoutConnect      = 500 * time.Millisecond
)

// DefaultAddrs maps each service to the address it listens on by default.
var DefaultAddrs = map[string]string{
	Service1: ":8000",
	Service2: ":8001",
	Service3: ":8002",
}

// Options configures a simulated service. Zero values take the defaults above; a negative failure
// rate disables injected failures.
type Options struct {
	Logger  logger.Logger
	Metrics *Metrics

	// Random returns a value in [0,1) and decides injected failures.
	Random func() float64
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration)

	DataFailureRate    float64
	ProcessFailureRate float64
	ProcessMinLatency  time.Duration
	ProcessMaxLatency  time.Duration

	// Fan-out downstreams, base URLs without a path.
	Service2URL   string
	Service3URL   string
	FanoutTimeout time.Duration
	FanoutConnect time.Duration
}

func (o *Options) setDefaults() {
	if o.Random == nil {
		o.Random = rand.Float64
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	if o.DataFailureRate == 0 {
		o.DataFailureRate = DefaultDataFailureRate
	}
	if o.ProcessFailureRate == 0 {
		o.ProcessFailureRate = DefaultProcessFailureRate
	}
	if o.ProcessMinLatency == 0 && o.ProcessMaxLatency == 0 {
		o.ProcessMinLatency = DefaultProcessMinLatency
		o.ProcessMaxLatency = DefaultProcessMaxLatency
	}
	if o.Service2URL == "" {
		o.Service2URL = DefaultService2URL
	}
	if o.Service3URL == "" {
		o.Service3URL = DefaultService3URL
	}
	if o.FanoutTimeout == 0 {
		o.FanoutTimeout = DefaultFanoutTimeout
	}
	if o.FanoutConnect == 0 {
		o.FanoutConnect = DefaultFanoutConnect
	}
}

// NewRouter builds the router for service. Every route, including the health, readiness and
// metrics endpoints, is counted by the metrics middleware.
func NewRouter(service string, opts Options) (*mux.Router, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("simservice: logger is required")
	}
	opts.setDefaults()
	if opts.Metrics == nil {
		metrics, err := NewMetrics(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		opts.Metrics = metrics
	}

	router := mux.NewRouter()
	router.Use(MetricsMiddleware(service, opts.Metrics, opts.Logger))

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	switch service {
	case Service1:
		fanout, err := newFanoutHandler(opts)
		if err != nil {
			return nil, err
		}
		router.HandleFunc("/data", handleData(opts)).Methods(http.MethodGet)
		router.Handle("/fanout", fanout).Methods(http.MethodGet)
	case Service2:
		router.HandleFunc("/process", handleProcess(opts)).Methods(http.MethodGet)
	case Service3:
		router.HandleFunc("/submit", handleSubmit).Methods(http.MethodPost)
	default:
		return nil, fmt.Errorf("simservice: unknown service %q", service)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return router, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
