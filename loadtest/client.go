// loadtest/client.go
package loadtest

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/headers/redact"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/proxy"
	"github.com/deploymenttheory/go-api-load-driver/redirecthandler"
	"go.uber.org/zap"
)

const idleConnTimeout = 90 * time.Second

// BuildHTTPClient creates the connection-pooled client used for one target's batch. The pool keeps at
// least MaxConcurrency connections open and alive so connection setup does not dominate the
// measurement. Both the dial timeout and the client's total timeout are set to config.Timeout.
func BuildHTTPClient(config RunConfig, log logger.Logger) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   config.Timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        config.MaxConcurrency,
		MaxIdleConnsPerHost: config.MaxConcurrency,
		MaxConnsPerHost:     config.MaxConcurrency,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: config.Timeout,
	}

	//region Proxy
	if err := proxy.InitializeProxy(transport, config.ProxyURL, config.HideSensitiveData, log); err != nil {
		return nil, fmt.Errorf("failed to configure proxy: %w", err)
	}
	//endregion

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	//region Redirect
	if err := redirecthandler.SetupRedirectHandler(httpClient, config.FollowRedirects, config.MaxRedirects, log, redact.SensitiveHeaderNames()...); err != nil {
		log.Error("Failed to set up redirect handler", zap.Error(err))
		return nil, err
	}
	//endregion

	log.Debug("Load client initialized",
		zap.Int("Max Connections Per Host", config.MaxConcurrency),
		zap.Duration("Timeout", config.Timeout),
		zap.Bool("Follow Redirects", config.FollowRedirects),
		zap.Int("Max Redirects", config.MaxRedirects),
		zap.Bool("Proxy Enabled", config.ProxyURL != ""),
	)

	return httpClient, nil
}
