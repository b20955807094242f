// profiler/client.go
package profiler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
)

// Querier runs a PromQL instant query and returns one sample per result series.
type Querier interface {
	Query(ctx context.Context, query string) ([]Sample, error)
}

// Client queries the HTTP API of a Prometheus server.
type Client struct {
	api v1.API
	log logger.Logger
}

// NewClient creates a Client for the server at baseURL. Requests go through httpClient's transport,
// so proxy and connection settings built for it apply; a nil httpClient uses the default transport.
func NewClient(baseURL string, httpClient *http.Client, log logger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("prometheus base URL is required")
	}

	roundTripper := http.DefaultTransport
	if httpClient != nil && httpClient.Transport != nil {
		roundTripper = httpClient.Transport
	}

	apiClient, err := api.NewClient(api.Config{Address: baseURL, RoundTripper: roundTripper})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client for %s: %w", baseURL, err)
	}
	return &Client{api: v1.NewAPI(apiClient), log: log}, nil
}

// Query evaluates query at the current time. Server warnings are logged, not returned.
func (c *Client) Query(ctx context.Context, query string) ([]Sample, error) {
	value, warnings, err := c.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query, err)
	}
	for _, warning := range warnings {
		c.log.Warn("Prometheus query warning", zap.String("query", query), zap.String("warning", warning))
	}
	return samplesFromValue(value)
}

// samplesFromValue flattens an instant query result. Vectors give one sample per series; a scalar
// gives a single sample.
func samplesFromValue(value model.Value) ([]Sample, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case model.Vector:
		samples := make([]Sample, 0, len(v))
		for _, s := range v {
			instance := string(s.Metric[model.InstanceLabel])
			if instance == "" {
				instance = unknownInstance
			}
			samples = append(samples, Sample{Instance: instance, Value: float64(s.Value)})
		}
		return samples, nil
	case *model.Scalar:
		return []Sample{{Instance: unknownInstance, Value: float64(v.Value)}}, nil
	default:
		return nil, fmt.Errorf("unsupported query result type %s", value.Type())
	}
}
