// zaplogger_logfields.go
package logger

import (
	"time"

	"go.uber.org/zap"
)

// LogBatchStart logs the start of a batch: the target under load, its HTTP method and URL, how many
// requests will be issued and the admission gate size.
func (d *defaultLogger) LogBatchStart(target string, method string, url string, requests int, maxConcurrency int) {
	fields := []zap.Field{
		zap.String("event", "batch_start"),
		zap.String("target", target),
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("requests", requests),
		zap.Int("max_concurrency", maxConcurrency),
	}
	d.Info("Load batch started", fields...)
}

// LogBatchEnd logs the completion of a batch with its success counts and wall-clock duration.
func (d *defaultLogger) LogBatchEnd(target string, sent int, succeeded int, duration time.Duration) {
	fields := []zap.Field{
		zap.String("event", "batch_end"),
		zap.String("target", target),
		zap.Int("sent", sent),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", sent-succeeded),
		zap.Duration("duration", duration),
	}
	d.Info("Load batch completed", fields...)
}

// LogRequestFailure logs a single failed load request. Failures are expected under load, so this is
// emitted at debug level; the batch summary carries the counts.
func (d *defaultLogger) LogRequestFailure(target string, method string, url string, index int, kind string, statusCode int, detail string) {
	fields := []zap.Field{
		zap.String("event", "request_failure"),
		zap.String("target", target),
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("index", index),
		zap.String("failure", kind),
		zap.Int("status_code", statusCode),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	d.Debug("Load request failed", fields...)
}

// LogRetryAttempt logs a retry of a fan-out call or readiness probe.
func (d *defaultLogger) LogRetryAttempt(target string, method string, url string, attempt int, reason string) {
	fields := []zap.Field{
		zap.String("event", "retry_attempt"),
		zap.String("target", target),
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("attempt", attempt),
		zap.String("reason", reason),
	}
	d.Warn("HTTP request retry", fields...)
}
