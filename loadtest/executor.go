// loadtest/executor.go
package loadtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/headers"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/response"
	"github.com/deploymenttheory/go-api-load-driver/status"
	"github.com/deploymenttheory/go-api-load-driver/version"
	"github.com/google/uuid"
)

// maxDrainBytes bounds how much of a response body is discarded to keep the connection reusable.
// Larger bodies are abandoned and the connection is closed instead.
const maxDrainBytes = 64 << 10

// FailureKind classifies why a request did not succeed.
type FailureKind int

const (
	FailureNone      FailureKind = iota // request succeeded
	FailureTransport                    // connection refused, DNS failure, reset, malformed request
	FailureTimeout                      // per-request timeout expired
	FailureStatus                       // response arrived with a non-2xx status
	FailureCanceled                     // run was canceled before or during the request
)

// String returns the name used in logs and JSON reports.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureTimeout:
		return "timeout"
	case FailureStatus:
		return "status"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Request is one scheduled call of a batch.
type Request struct {
	Target Target
	Index  int       // position within the batch, 0..N-1
	ID     uuid.UUID // request ID issued with the concurrency token
}

// Outcome is the verdict for one request. StatusCode is zero when no response was received.
type Outcome struct {
	Success    bool
	StatusCode int
	Failure    FailureKind
	Latency    time.Duration
}

// Executor performs a single request. Implementations must not return errors or panic for
// per-request failures; every failure is expressed in the Outcome.
type Executor interface {
	Execute(ctx context.Context, req Request) Outcome
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) Outcome

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// HTTPExecutor issues requests over a shared, connection-pooled http.Client.
type HTTPExecutor struct {
	client            *http.Client
	log               logger.Logger
	userAgent         string
	hideSensitiveData bool
}

// NewHTTPExecutor returns an executor that sends every request through client.
func NewHTTPExecutor(client *http.Client, config RunConfig, log logger.Logger) *HTTPExecutor {
	return &HTTPExecutor{
		client:            client,
		log:               log,
		userAgent:         version.GetUserAgentHeader(),
		hideSensitiveData: config.HideSensitiveData,
	}
}

// Execute performs one GET or POST and classifies the result. A response is a success iff its status
// is in [200,300). The body is always drained and closed so the connection returns to the pool.
func (e *HTTPExecutor) Execute(ctx context.Context, req Request) Outcome {
	target := req.Target
	start := time.Now()

	var body io.Reader
	if target.sendsBody() {
		body = bytes.NewReader(target.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, target.Method, target.URL, body)
	if err != nil {
		e.log.LogRequestFailure(target.Name, target.Method, target.URL, req.Index, FailureTransport.String(), 0, err.Error())
		return Outcome{Failure: FailureTransport, Latency: time.Since(start)}
	}

	headerHandler := headers.NewHeaderHandler(httpReq, e.log)
	headerHandler.SetRequestHeaders(e.userAgent, target.sendsBody(), target.Headers)
	if req.Index == 0 {
		headerHandler.LogHeaders(e.hideSensitiveData)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		kind := classifyError(ctx, err)
		e.log.LogRequestFailure(target.Name, target.Method, target.URL, req.Index, kind.String(), 0, err.Error())
		return Outcome{Failure: kind, Latency: time.Since(start)}
	}
	defer drainAndClose(resp.Body)

	if status.IsSuccessStatusCode(resp.StatusCode) {
		return Outcome{Success: true, StatusCode: resp.StatusCode, Latency: time.Since(start)}
	}

	latency := time.Since(start)
	detail := status.TranslateStatusCode(resp.StatusCode)
	switch {
	case status.IsRedirectStatusCode(resp.StatusCode):
		detail = fmt.Sprintf("redirect to %q not followed", resp.Header.Get("Location"))
	case e.log.GetLogLevel() <= logger.LogLevelDebug:
		if parsed := response.ReadFailureDetail(resp); parsed != "" {
			detail = parsed
		}
	}
	e.log.LogRequestFailure(target.Name, target.Method, target.URL, req.Index, FailureStatus.String(), resp.StatusCode, detail)
	return Outcome{StatusCode: resp.StatusCode, Failure: FailureStatus, Latency: latency}
}

// classifyError maps a transport-level error onto a FailureKind. Cancellation of the run context takes
// precedence, so requests cut short by an interrupted run are not reported as timeouts.
func classifyError(ctx context.Context, err error) FailureKind {
	if ctx.Err() != nil {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
