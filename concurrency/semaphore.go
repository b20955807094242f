// concurrency/semaphore.go
/* package provides utilities to manage concurrency control. The handler
ensures no more than a fixed number of load requests are in flight at the
same time. This is managed using a semaphore */
package concurrency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AcquireConcurrencyToken blocks until a token is free or ctx is done. On success it returns a
// derived context carrying a freshly generated request ID, and that ID, which must later be passed
// to ReleaseConcurrencyToken. On failure it returns ctx.Err() and no token is held.
//
// Example:
// ctx, requestID, err := concurrencyHandler.AcquireConcurrencyToken(ctx)
//
//	if err != nil {
//	    // run canceled before a slot opened
//	}
//
// defer concurrencyHandler.ReleaseConcurrencyToken(requestID)
func (ch *ConcurrencyHandler) AcquireConcurrencyToken(ctx context.Context) (context.Context, uuid.UUID, error) {
	tokenAcquisitionStart := time.Now()
	requestID := uuid.New()

	// A canceled context never takes a token, even when one is free.
	if err := ctx.Err(); err != nil {
		return ctx, requestID, err
	}

	select {
	case ch.sem <- struct{}{}:
		tokenAcquisitionDuration := time.Since(tokenAcquisitionStart)
		inFlight := ch.Metrics.recordAcquire(tokenAcquisitionDuration)

		ch.logger.Debug("Acquired concurrency token",
			zap.String("RequestID", requestID.String()),
			zap.Duration("AcquisitionTime", tokenAcquisitionDuration),
			zap.Int64("InFlight", inFlight),
			zap.Int("AvailableTokens", cap(ch.sem)-len(ch.sem)),
		)

		return context.WithValue(ctx, RequestIDKey{}, requestID), requestID, nil

	case <-ctx.Done():
		ch.logger.Debug("Concurrency token acquisition abandoned", zap.Error(ctx.Err()))
		return ctx, requestID, ctx.Err()
	}
}

// ReleaseConcurrencyToken returns a token back to the semaphore pool, allowing other
// operations to proceed. It uses the provided requestID for structured logging.
func (ch *ConcurrencyHandler) ReleaseConcurrencyToken(requestID uuid.UUID) {
	inFlight := ch.Metrics.recordRelease()
	<-ch.sem

	ch.logger.Debug("Released concurrency token",
		zap.String("RequestID", requestID.String()),
		zap.Int64("InFlight", inFlight),
		zap.Int("AvailableTokens", cap(ch.sem)-len(ch.sem)),
	)
}
