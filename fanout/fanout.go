// fanout/fanout.go
/* Package fanout calls several downstream targets at once with a simple retry-once policy:
a failed call is attempted again immediately, up to Attempts calls in total, with no backoff.
It is unrelated to the load driver's batches, which never retry. */
package fanout

import (
	"context"
	"sync"

	"github.com/deploymenttheory/go-api-load-driver/loadtest"
	"github.com/deploymenttheory/go-api-load-driver/logger"
)

// DefaultAttempts is the total number of calls made per target, including the first.
const DefaultAttempts = 2

// Caller performs fan-out calls through an Executor.
type Caller struct {
	Executor loadtest.Executor
	Attempts int
	Logger   logger.Logger
}

// NewCaller returns a Caller that makes DefaultAttempts attempts per target.
func NewCaller(exec loadtest.Executor, log logger.Logger) *Caller {
	return &Caller{Executor: exec, Attempts: DefaultAttempts, Logger: log}
}

// Call reports whether target answered with a 2xx status within the allowed attempts.
// Attempts below 1 are treated as 1.
func (c *Caller) Call(ctx context.Context, target loadtest.Target) bool {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		outcome := c.Executor.Execute(ctx, loadtest.Request{Target: target, Index: attempt})
		if outcome.Success {
			return true
		}
		if attempt+1 < attempts && c.Logger != nil {
			c.Logger.LogRetryAttempt(target.Name, target.Method, target.URL, attempt+1, outcome.Failure.String())
		}
	}
	return false
}

// FanOut calls every target concurrently and returns each target's verdict keyed by name.
func (c *Caller) FanOut(ctx context.Context, targets ...loadtest.Target) map[string]bool {
	results := make(map[string]bool, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		go func(target loadtest.Target) {
			defer wg.Done()
			ok := c.Call(ctx, target)
			mu.Lock()
			results[target.Name] = ok
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return results
}

// AllSucceeded reports whether every verdict in results is true. An empty map counts as success.
func AllSucceeded(results map[string]bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
