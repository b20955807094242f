// mocklogger/mocklogger.go
package mocklogger

import (
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockLogger is a mock type for the Logger interface, embedding a *zap.Logger to satisfy the type requirement.
type MockLogger struct {
	mock.Mock
	*zap.Logger
	logLevel logger.LogLevel
}

// NewMockLogger creates a new instance of MockLogger with an embedded no-op *zap.Logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		Logger: zap.NewNop(),
	}
}

// Ensure MockLogger implements the logger.Logger interface from the logger package
var _ logger.Logger = (*MockLogger)(nil)

// GetLogLevel returns the level last set with SetLevel.
func (m *MockLogger) GetLogLevel() logger.LogLevel {
	return m.logLevel
}

// SetLevel sets the logging level of the MockLogger.
func (m *MockLogger) SetLevel(level logger.LogLevel) {
	m.logLevel = level
}

// With returns the same mock so expectations set on it keep applying to derived loggers.
func (m *MockLogger) With(fields ...zap.Field) logger.Logger {
	return m
}

// Debug logs a message at the Debug level.
func (m *MockLogger) Debug(msg string, fields ...zap.Field) {
	m.Called(msg, fields)
}

// Info logs a message at the Info level.
func (m *MockLogger) Info(msg string, fields ...zap.Field) {
	m.Called(msg, fields)
}

// Warn logs a message at the Warn level.
func (m *MockLogger) Warn(msg string, fields ...zap.Field) {
	m.Called(msg, fields)
}

// Error logs a message at the Error level and returns the error configured on the expectation.
func (m *MockLogger) Error(msg string, fields ...zap.Field) error {
	args := m.Called(msg, fields)
	return args.Error(0)
}

// LogBatchStart mocks the batch start helper.
func (m *MockLogger) LogBatchStart(target string, method string, url string, requests int, maxConcurrency int) {
	m.Called(target, method, url, requests, maxConcurrency)
}

// LogBatchEnd mocks the batch end helper.
func (m *MockLogger) LogBatchEnd(target string, sent int, succeeded int, duration time.Duration) {
	m.Called(target, sent, succeeded, duration)
}

// LogRequestFailure mocks the request failure helper.
func (m *MockLogger) LogRequestFailure(target string, method string, url string, index int, kind string, statusCode int, detail string) {
	m.Called(target, method, url, index, kind, statusCode, detail)
}

// LogRetryAttempt mocks the retry helper.
func (m *MockLogger) LogRetryAttempt(target string, method string, url string, attempt int, reason string) {
	m.Called(target, method, url, attempt, reason)
}
