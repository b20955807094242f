// loadtest/scheduler.go
package loadtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/concurrency"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunBatch issues config.RequestsPerTarget requests against target through exec, with at most
// config.MaxConcurrency in flight at any instant, and waits for every one of them to finish.
//
// Each request takes a concurrency token before it starts and gives it back when it finishes,
// whatever the outcome. Results are collected per request and reduced once the batch has joined.
// A failed request never stops the batch and is never retried. When ctx is canceled, requests that
// have not started are recorded as canceled, so the result always has Sent == RequestsPerTarget.
func RunBatch(ctx context.Context, target Target, config RunConfig, exec Executor, log logger.Logger) TargetResult {
	n := config.RequestsPerTarget
	if n < 0 {
		n = 0
	}

	concurrencyHandler := concurrency.NewConcurrencyHandler(config.MaxConcurrency, log, &concurrency.ConcurrencyMetrics{})
	outcomes := make(chan Outcome, n)

	log.LogBatchStart(target.Name, target.Method, target.URL, n, concurrencyHandler.Limit())
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		reqCtx, requestID, err := concurrencyHandler.AcquireConcurrencyToken(ctx)
		if err != nil {
			outcomes <- Outcome{Failure: FailureCanceled}
			continue
		}

		wg.Add(1)
		go func(index int, reqCtx context.Context, requestID uuid.UUID) {
			defer wg.Done()
			defer concurrencyHandler.ReleaseConcurrencyToken(requestID)
			outcomes <- executeSafely(reqCtx, exec, Request{Target: target, Index: index, ID: requestID}, log)
		}(i, reqCtx, requestID)
	}

	wg.Wait()
	close(outcomes)

	result := TargetResult{TargetName: target.Name}
	for outcome := range outcomes {
		result.record(outcome)
	}
	result.Elapsed = time.Since(start)

	snapshot := concurrencyHandler.Metrics.Snapshot()
	result.PeakInFlight = int(snapshot.PeakInFlight)
	result.AverageWait = snapshot.AverageWait()

	log.LogBatchEnd(target.Name, result.Sent, result.Succeeded, result.Elapsed)
	return result
}

// executeSafely runs exec and turns a panic into a transport failure so one misbehaving request
// cannot take down the batch or leak its token.
func executeSafely(ctx context.Context, exec Executor, req Request, log logger.Logger) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Executor panicked",
				zap.String("target", req.Target.Name),
				zap.Int("index", req.Index),
				zap.String("panic", fmt.Sprint(r)),
			)
			outcome = Outcome{Failure: FailureTransport}
		}
	}()
	return exec.Execute(ctx, req)
}
