// loadtest/readiness.go
package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/ratehandler"
	"github.com/deploymenttheory/go-api-load-driver/status"
	"github.com/deploymenttheory/go-api-load-driver/version"
	"go.uber.org/zap"
)

// backoffFunc is swapped out in tests to keep the probe fast.
var backoffFunc = ratehandler.CalculateBackoff

// WaitForReady probes the readiness URL of every target that has one, in order, until it answers
// 200 OK. Each target gets at most attempts tries with exponential backoff between them. An error
// means at least one target never became ready, or ctx ended first.
func WaitForReady(ctx context.Context, client *http.Client, targets []Target, attempts int, log logger.Logger) error {
	if attempts < 1 {
		attempts = 1
	}

	for _, target := range targets {
		if target.ReadinessURL == "" {
			continue
		}
		if err := probeTarget(ctx, client, target, attempts, log); err != nil {
			return err
		}
	}
	return nil
}

func probeTarget(ctx context.Context, client *http.Client, target Target, attempts int, log logger.Logger) error {
	var reason string
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.LogRetryAttempt(target.Name, http.MethodGet, target.ReadinessURL, attempt, reason)
			timer := time.NewTimer(backoffFunc(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("readiness probe for %s interrupted: %w", target.Name, ctx.Err())
			case <-timer.C:
			}
		}

		ready, retryable, why := probeOnce(ctx, client, target.ReadinessURL)
		if ready {
			log.Info("Target ready", zap.String("target", target.Name), zap.Int("attempts", attempt+1))
			return nil
		}
		reason = why
		if !retryable {
			return fmt.Errorf("target %s not ready: %s", target.Name, reason)
		}
	}

	return fmt.Errorf("target %s not ready after %d attempts: %s", target.Name, attempts, reason)
}

// probeOnce reports whether the readiness URL answered 200. Transport errors and retryable statuses
// (408, 429, 5xx gateway and availability codes) may clear up; any other status will not.
func probeOnce(ctx context.Context, client *http.Client, readinessURL string) (ready bool, retryable bool, reason string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readinessURL, nil)
	if err != nil {
		return false, false, err.Error()
	}
	req.Header.Set("User-Agent", version.GetUserAgentHeader())

	resp, err := client.Do(req)
	if err != nil {
		return false, true, err.Error()
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		reason = fmt.Sprintf("status %d: %s", resp.StatusCode, status.TranslateStatusCode(resp.StatusCode))
		return false, status.IsRetryableStatusCode(resp.StatusCode), reason
	}
	return true, false, ""
}
