// loadtest/orchestrator_test.go
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDriverRun_Aggregates(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		if req.Target.Name == "b" && req.Index < 2 {
			return Outcome{Failure: FailureStatus, StatusCode: http.StatusInternalServerError}
		}
		return Outcome{Success: true, StatusCode: http.StatusOK}
	})

	driver := &Driver{
		Config:   testConfig(10, 3),
		Targets:  []Target{testTarget("a", "http://a.local/"), testTarget("b", "http://b.local/")},
		Logger:   nopLogger(),
		Executor: exec,
	}

	report, err := driver.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "a", report.Results[0].TargetName)
	assert.Equal(t, "b", report.Results[1].TargetName)
	assert.Equal(t, report.Results[0].Sent+report.Results[1].Sent, report.OverallSent)
	assert.Equal(t, report.Results[0].Succeeded+report.Results[1].Succeeded, report.OverallSucceeded)
	assert.Equal(t, 18, report.OverallSucceeded)
	assert.False(t, report.Passed)
	assert.NotEmpty(t, report.RunID)
}

// TestDriverRun_TargetsAreSequential checks that no request of a target starts before the previous
// target's batch has fully finished.
func TestDriverRun_TargetsAreSequential(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var active int64
	var overlapped bool

	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		mu.Lock()
		if len(order) > 0 && order[len(order)-1] != req.Target.Name && atomic.LoadInt64(&active) > 0 {
			overlapped = true
		}
		order = append(order, req.Target.Name)
		atomic.AddInt64(&active, 1)
		mu.Unlock()

		time.Sleep(time.Millisecond)
		atomic.AddInt64(&active, -1)
		return Outcome{Success: true}
	})

	driver := &Driver{
		Config:   testConfig(8, 4),
		Targets:  []Target{testTarget("first", "http://a.local/"), testTarget("second", "http://b.local/")},
		Logger:   nopLogger(),
		Executor: exec,
	}

	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, overlapped)
	require.Len(t, order, 16)
	for i, name := range order {
		if i < 8 {
			assert.Equal(t, "first", name)
		} else {
			assert.Equal(t, "second", name)
		}
	}
}

func TestDriverRun_InvalidConfigSendsNothing(t *testing.T) {
	var calls int64
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		atomic.AddInt64(&calls, 1)
		return Outcome{Success: true}
	})

	tests := []struct {
		name    string
		config  RunConfig
		targets []Target
	}{
		{"zero concurrency", testConfig(10, 0), []Target{testTarget("a", "http://a.local/")}},
		{"zero requests", testConfig(0, 1), []Target{testTarget("a", "http://a.local/")}},
		{"bad url", testConfig(10, 1), []Target{testTarget("a", "not a url")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &Driver{Config: tt.config, Targets: tt.targets, Logger: nopLogger(), Executor: exec}

			report, err := driver.Run(context.Background())

			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Nil(t, report)
		})
	}
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestDriverRun_EmptyTargets(t *testing.T) {
	driver := &Driver{Config: testConfig(10, 2), Logger: nopLogger(), Executor: alwaysSucceed()}

	report, err := driver.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, report.OverallSent)
	assert.True(t, report.Passed)
	assert.Equal(t, 0, report.ExitCode())
}

func TestDriverRun_InterruptedReturnsNoReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := ExecutorFunc(func(reqCtx context.Context, req Request) Outcome {
		if req.Index == 3 {
			cancel()
		}
		return Outcome{Success: true}
	})

	driver := &Driver{
		Config:   testConfig(50, 1),
		Targets:  []Target{testTarget("a", "http://a.local/"), testTarget("b", "http://b.local/")},
		Logger:   nopLogger(),
		Executor: exec,
	}

	report, err := driver.Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestDriverRun_RunTimeout(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		select {
		case <-ctx.Done():
			return Outcome{Failure: FailureCanceled}
		case <-time.After(20 * time.Millisecond):
			return Outcome{Success: true}
		}
	})

	config := testConfig(100, 1)
	config.RunTimeout = 50 * time.Millisecond
	driver := &Driver{Config: config, Targets: []Target{testTarget("a", "http://a.local/")}, Logger: nopLogger(), Executor: exec}

	report, err := driver.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, report)
}

func TestDriverRun_LogsRunID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logger.NewLogger(zap.New(core), logger.LogLevelInfo)

	driver := &Driver{Config: testConfig(2, 1), Targets: []Target{testTarget("a", "http://a.local/")}, Logger: log, Executor: alwaysSucceed()}

	report, err := driver.Run(context.Background())
	require.NoError(t, err)

	completed := logs.FilterMessage("Load test completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, report.RunID, completed[0].ContextMap()["run_id"])
	assert.Len(t, logs.FilterField(zap.String("event", "batch_end")).All(), 1)
}

// TestDriverRun_EndToEnd runs the default HTTP executor against three local servers shaped like the
// simulated services.
func TestDriverRun_EndToEnd(t *testing.T) {
	var posted int64
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	})
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Payload map[string]string `json:"payload"`
		}
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil || body.Payload["k"] != "v" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		atomic.AddInt64(&posted, 1)
		_, _ = w.Write([]byte(`{"message":"submitted"}`))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ready":true}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	config := testConfig(20, 5)
	config.WaitForReady = true
	driver := NewDriver(config, DefaultTargets(server.URL+"/data", server.URL+"/process", server.URL+"/submit"), nopLogger())

	report, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 60, report.OverallSent)
	assert.Equal(t, 40, report.OverallSucceeded)
	assert.Equal(t, 20, report.Results[1].StatusErrors)
	assert.EqualValues(t, 20, atomic.LoadInt64(&posted))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf))
	assert.Contains(t, buf.String(), "Service service2: 0.00% success (0/20)")
	assert.Equal(t, 1, report.ExitCode())
}

func TestDriverRun_NotReadyAborts(t *testing.T) {
	withInstantBackoff(t)
	var loadRequests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		atomic.AddInt64(&loadRequests, 1)
	}))
	defer server.Close()

	config := testConfig(5, 1)
	config.WaitForReady = true
	config.ReadinessAttempts = 2
	driver := NewDriver(config, []Target{{Name: "svc", URL: server.URL + "/data", Method: "GET", ReadinessURL: server.URL + "/readyz"}}, nopLogger())

	report, err := driver.Run(context.Background())

	require.Error(t, err)
	assert.Nil(t, report)
	assert.Zero(t, atomic.LoadInt64(&loadRequests))
}
