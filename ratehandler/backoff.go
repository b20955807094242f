// ratehandler/backoff.go
/* Backoff timing for the load driver's readiness probe. Load requests themselves are never retried,
so nothing in this package sits on the hot path of a batch. */
package ratehandler

import (
	"math"
	"math/rand"
	"time"
)

const (
	baseDelay    = 100 * time.Millisecond // Initial delay between attempts
	maxDelay     = 5 * time.Second        // Upper bound for any single wait
	jitterFactor = 0.5                    // Maximum jitter as a fraction of the current delay
)

// CalculateBackoff returns the wait before attempt retry+1: baseDelay doubled retry times, with up to
// ±jitterFactor random jitter, capped at maxDelay.
func CalculateBackoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	delay := float64(baseDelay) * math.Pow(2, float64(retry))
	jitter := (rand.Float64() - 0.5) * jitterFactor * 2 * delay
	delayWithJitter := delay + jitter

	if delayWithJitter > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delayWithJitter)
}
