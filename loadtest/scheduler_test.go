// loadtest/scheduler_test.go
package loadtest

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysSucceed() Executor {
	return ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		return Outcome{Success: true, StatusCode: http.StatusOK}
	})
}

// inFlightTracker is an executor that records the highest number of concurrent Execute calls.
type inFlightTracker struct {
	current int64
	max     int64
	hold    time.Duration
}

func (e *inFlightTracker) Execute(ctx context.Context, req Request) Outcome {
	n := atomic.AddInt64(&e.current, 1)
	defer atomic.AddInt64(&e.current, -1)
	for {
		seen := atomic.LoadInt64(&e.max)
		if n <= seen || atomic.CompareAndSwapInt64(&e.max, seen, n) {
			break
		}
	}
	time.Sleep(e.hold)
	return Outcome{Success: true, StatusCode: http.StatusOK}
}

func TestRunBatch_AllSucceed(t *testing.T) {
	result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(10, 3), alwaysSucceed(), nopLogger())

	assert.Equal(t, "svc", result.TargetName)
	assert.Equal(t, 10, result.Sent)
	assert.Equal(t, 10, result.Succeeded)
	assert.LessOrEqual(t, result.PeakInFlight, 3)
}

func TestRunBatch_OddIndexFails(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		if req.Index%2 == 1 {
			return Outcome{StatusCode: http.StatusInternalServerError, Failure: FailureStatus}
		}
		return Outcome{Success: true, StatusCode: http.StatusOK}
	})

	result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(10, 3), exec, nopLogger())

	assert.Equal(t, 10, result.Sent)
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 5, result.StatusErrors)
}

func TestRunBatch_EveryIndexOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]int{}
	ids := map[string]bool{}
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		mu.Lock()
		defer mu.Unlock()
		seen[req.Index]++
		ids[req.ID.String()] = true
		return Outcome{Success: true}
	})

	RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(25, 4), exec, nopLogger())

	require.Len(t, seen, 25)
	for i := 0; i < 25; i++ {
		assert.Equal(t, 1, seen[i], "index %d", i)
	}
	assert.Len(t, ids, 25, "every request gets its own ID")
}

func TestRunBatch_ConcurrencyBound(t *testing.T) {
	for _, maxConcurrency := range []int{1, 3, 8} {
		exec := &inFlightTracker{hold: 5 * time.Millisecond}

		result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(40, maxConcurrency), exec, nopLogger())

		assert.Equal(t, 40, result.Succeeded)
		assert.LessOrEqual(t, atomic.LoadInt64(&exec.max), int64(maxConcurrency))
		assert.LessOrEqual(t, result.PeakInFlight, maxConcurrency)
	}
}

// TestRunBatch_Conservation drives batches of assorted sizes through an executor with random outcomes
// and checks the counts always add up.
func TestRunBatch_Conservation(t *testing.T) {
	kinds := []FailureKind{FailureNone, FailureTransport, FailureTimeout, FailureStatus}
	rng := rand.New(rand.NewSource(7))
	var mu sync.Mutex

	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		mu.Lock()
		kind := kinds[rng.Intn(len(kinds))]
		mu.Unlock()
		return Outcome{Success: kind == FailureNone, Failure: kind}
	})

	for _, n := range []int{1, 2, 17, 100} {
		result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(n, 5), exec, nopLogger())

		assert.Equal(t, n, result.Sent)
		assert.LessOrEqual(t, result.Succeeded, result.Sent)
		assert.Equal(t, result.Sent, result.Succeeded+result.Timeouts+result.TransportErrors+result.StatusErrors+result.Canceled)
	}
}

func TestRunBatch_ZeroRequests(t *testing.T) {
	config := testConfig(1, 1)
	config.RequestsPerTarget = 0

	result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), config, alwaysSucceed(), nopLogger())

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 0, result.Succeeded)
}

func TestRunBatch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int64
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		atomic.AddInt64(&calls, 1)
		return Outcome{Success: true}
	})

	result := RunBatch(ctx, testTarget("svc", "http://localhost/"), testConfig(10, 2), exec, nopLogger())

	assert.Equal(t, 10, result.Sent)
	assert.Equal(t, 10, result.Canceled)
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestRunBatch_PanicIsFailure(t *testing.T) {
	exec := ExecutorFunc(func(ctx context.Context, req Request) Outcome {
		if req.Index == 0 {
			panic("boom")
		}
		return Outcome{Success: true}
	})

	result := RunBatch(context.Background(), testTarget("svc", "http://localhost/"), testConfig(4, 1), exec, nopLogger())

	assert.Equal(t, 4, result.Sent)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 1, result.TransportErrors)
}

// TestRunBatch_HTTPTimeouts runs a real batch against a handler slower than the timeout.
func TestRunBatch_HTTPTimeouts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slow") != "" {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := testConfig(6, 3)
	config.Timeout = 50 * time.Millisecond
	client, err := BuildHTTPClient(config, nopLogger())
	require.NoError(t, err)
	defer client.CloseIdleConnections()

	result := RunBatch(context.Background(), testTarget("slow", server.URL+"?slow=1"), config, NewHTTPExecutor(client, config, nopLogger()), nopLogger())

	assert.Equal(t, 6, result.Sent)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 6, result.Timeouts)
}
