// simservice/service_test.go
package simservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() logger.Logger {
	return logger.NewLogger(zap.NewNop(), logger.LogLevelNone)
}

// fixedRandom always returns v.
func fixedRandom(v float64) func() float64 {
	return func() float64 { return v }
}

// sequenceRandom returns values in order, repeating the last one.
func sequenceRandom(values ...float64) func() float64 {
	var mu sync.Mutex
	i := 0
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

// sleepRecorder records requested sleeps instead of waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
}

func newRouter(t *testing.T, service string, opts Options) http.Handler {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = nopLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = (&sleepRecorder{}).Sleep
	}
	router, err := NewRouter(service, opts)
	require.NoError(t, err)
	return router
}

func serve(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewRouter_Errors(t *testing.T) {
	_, err := NewRouter("service9", Options{Logger: nopLogger()})
	assert.Error(t, err)

	_, err = NewRouter(Service1, Options{})
	assert.Error(t, err)
}

func TestCommonEndpoints(t *testing.T) {
	for _, service := range []string{Service1, Service2, Service3} {
		t.Run(service, func(t *testing.T) {
			router := newRouter(t, service, Options{Random: fixedRandom(0.99)})

			rec := serve(router, http.MethodGet, "/healthz", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

			rec = serve(router, http.MethodGet, "/readyz", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"ready":true}`, rec.Body.String())

			rec = serve(router, http.MethodGet, "/metrics", "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestService1Data(t *testing.T) {
	tests := []struct {
		name       string
		random     float64
		wantStatus int
		wantBody   string
	}{
		{"success", 0.5, http.StatusOK, `{"message":"Data retrieved successfully from Service 1"}`},
		{"injected failure", 0.05, http.StatusInternalServerError, `{"detail":"Internal Server Error"}`},
		{"failure boundary is exclusive", DefaultDataFailureRate, http.StatusOK, `{"message":"Data retrieved successfully from Service 1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, Service1, Options{Random: fixedRandom(tt.random)})

			rec := serve(router, http.MethodGet, "/data", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestService2Process(t *testing.T) {
	sleeper := &sleepRecorder{}
	router := newRouter(t, Service2, Options{Random: sequenceRandom(0.5, 0.9, 0.0, 0.01), Sleep: sleeper.Sleep})

	rec := serve(router, http.MethodGet, "/process", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Data processed successfully by Service 2"}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/process", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"detail":"Bad Request"}`, rec.Body.String())

	require.Len(t, sleeper.sleeps, 2)
	assert.Equal(t, 300*time.Millisecond, sleeper.sleeps[0])
	assert.Equal(t, 100*time.Millisecond, sleeper.sleeps[1])
}

func TestService2_NoDataRoute(t *testing.T) {
	router := newRouter(t, Service2, Options{})

	rec := serve(router, http.MethodGet, "/data", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestService3Submit(t *testing.T) {
	router := newRouter(t, Service3, Options{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"payload object", `{"payload": {"k": "v"}}`, http.StatusOK},
		{"missing payload", `{}`, http.StatusOK},
		{"payload not an object", `{"payload": 5}`, http.StatusUnprocessableEntity},
		{"malformed JSON", `{"payload":`, http.StatusUnprocessableEntity},
		{"empty body", ``, http.StatusUnprocessableEntity},
		{"null body", `null`, http.StatusUnprocessableEntity},
		{"null payload", `{"payload": null}`, http.StatusUnprocessableEntity},
		{"array body", `[1, 2]`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, http.MethodPost, "/submit", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"message":"Data submitted successfully to Service 3"}`, rec.Body.String())
			}
		})
	}
}

func TestService3Submit_WrongMethod(t *testing.T) {
	router := newRouter(t, Service3, Options{})

	rec := serve(router, http.MethodGet, "/submit", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method Not Allowed", decode(t, rec)["detail"])
}

func TestService1Fanout(t *testing.T) {
	metrics, _ := newMetrics(t)
	service3 := httptest.NewServer(newRouter(t, Service3, Options{Metrics: metrics}))
	defer service3.Close()

	tests := []struct {
		name        string
		random      func() float64
		wantService bool
		wantSuccess float64
	}{
		{"both succeed", fixedRandom(0.99), true, 1},
		{"service2 recovers on retry", sequenceRandom(0.0, 0.0, 0.0, 0.99), true, 1},
		{"service2 always fails", fixedRandom(0.0), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service2 := httptest.NewServer(newRouter(t, Service2, Options{Metrics: metrics, Random: tt.random}))
			defer service2.Close()

			router := newRouter(t, Service1, Options{Service2URL: service2.URL, Service3URL: service3.URL + "/"})

			rec := serve(router, http.MethodGet, "/fanout", "")

			require.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantService, body["service2"])
			assert.Equal(t, true, body["service3"])
			assert.Equal(t, tt.wantSuccess, body["success"])
		})
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.requests.WithLabelValues(Service3, http.MethodPost, "/submit")))
}

func TestService1Fanout_DownstreamUnreachable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	router := newRouter(t, Service1, Options{Service2URL: url, Service3URL: url, FanoutTimeout: 200 * time.Millisecond})

	rec := serve(router, http.MethodGet, "/fanout", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service2":false,"service3":false,"success":0}`, rec.Body.String())
}
