// loadtest/helpers_test.go
package loadtest

import (
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"go.uber.org/zap"
)

func nopLogger() logger.Logger {
	return logger.NewLogger(zap.NewNop(), logger.LogLevelNone)
}

func testConfig(requests, maxConcurrency int) RunConfig {
	config := DefaultRunConfig()
	config.RequestsPerTarget = requests
	config.MaxConcurrency = maxConcurrency
	config.Timeout = 500 * time.Millisecond
	config.RunTimeout = 0
	return config
}

func testTarget(name, url string) Target {
	return Target{Name: name, URL: url, Method: "GET"}
}
