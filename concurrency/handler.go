// concurrency/handler.go
package concurrency

import (
	"context"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/google/uuid"
)

// ConcurrencyHandler caps the number of load requests in flight at once. The limit is fixed for the
// lifetime of the handler; a batch creates one handler and every request of that batch shares it.
type ConcurrencyHandler struct {
	sem     chan struct{}
	logger  logger.Logger
	Metrics *ConcurrencyMetrics
}

// NewConcurrencyHandler initializes a new ConcurrencyHandler with the given
// concurrency limit, logger, and concurrency metrics. A nil metrics value gets a fresh
// ConcurrencyMetrics. Limits below 1 are raised to 1.
func NewConcurrencyHandler(limit int, logger logger.Logger, metrics *ConcurrencyMetrics) *ConcurrencyHandler {
	if limit < 1 {
		limit = 1
	}
	if metrics == nil {
		metrics = &ConcurrencyMetrics{}
	}
	return &ConcurrencyHandler{
		sem:     make(chan struct{}, limit),
		logger:  logger,
		Metrics: metrics,
	}
}

// Limit returns the maximum number of tokens the handler hands out at once.
func (ch *ConcurrencyHandler) Limit() int {
	return cap(ch.sem)
}

// RequestIDKey is type used as a key for storing and retrieving
// request-specific identifiers from a context.Context object. The value associated
// with this key is the UUID generated when the request acquired its concurrency token.
type RequestIDKey struct{}

// RequestIDFromContext returns the request ID stored by AcquireConcurrencyToken, if any.
func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(RequestIDKey{}).(uuid.UUID)
	return id, ok
}
