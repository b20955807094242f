// profiler/client_test.go
package profiler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/deploymenttheory/go-api-load-driver/loadtest"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func nopLogger() logger.Logger {
	return logger.NewLogger(zap.NewNop(), logger.LogLevelNone)
}

// prometheusAPI fakes the instant query endpoint, answering each PromQL query from responses.
type prometheusAPI struct {
	mu        sync.Mutex
	responses map[string]string
	queries   []string
}

func (p *prometheusAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/query" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	query := r.Form.Get("query")

	p.mu.Lock()
	p.queries = append(p.queries, query)
	body, ok := p.responses[query]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":"error","errorType":"bad_data","error":"unknown query"}`)
		return
	}
	_, _ = io.WriteString(w, body)
}

func (p *prometheusAPI) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func newTestClient(t *testing.T, serverURL string, log logger.Logger) *Client {
	t.Helper()
	httpClient, err := loadtest.BuildHTTPClient(loadtest.DefaultRunConfig(), log)
	require.NoError(t, err)
	t.Cleanup(httpClient.CloseIdleConnections)

	client, err := NewClient(serverURL, httpClient, log)
	require.NoError(t, err)
	return client
}

func TestClientQuery_Vector(t *testing.T) {
	fake := &prometheusAPI{responses: map[string]string{
		"up": `{"status":"success","data":{"resultType":"vector","result":[
			{"metric":{"instance":"service1:8000"},"value":[1700000000.0,"0.25"]},
			{"metric":{},"value":[1700000000.0,"1.5"]}
		]}}`,
	}}
	server := httptest.NewServer(fake)
	defer server.Close()

	samples, err := newTestClient(t, server.URL, nopLogger()).Query(context.Background(), "up")

	require.NoError(t, err)
	assert.Equal(t, []Sample{
		{Instance: "service1:8000", Value: 0.25},
		{Instance: "unknown_instance", Value: 1.5},
	}, samples)
}

func TestClientQuery_Scalar(t *testing.T) {
	fake := &prometheusAPI{responses: map[string]string{
		"1+1": `{"status":"success","data":{"resultType":"scalar","result":[1700000000.0,"2"]}}`,
	}}
	server := httptest.NewServer(fake)
	defer server.Close()

	samples, err := newTestClient(t, server.URL, nopLogger()).Query(context.Background(), "1+1")

	require.NoError(t, err)
	assert.Equal(t, []Sample{{Instance: "unknown_instance", Value: 2}}, samples)
}

func TestClientQuery_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(&prometheusAPI{responses: map[string]string{}})
	defer server.Close()

	_, err := newTestClient(t, server.URL, nopLogger()).Query(context.Background(), "bogus(")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus(")
}

func TestClientQuery_WarningsLogged(t *testing.T) {
	fake := &prometheusAPI{responses: map[string]string{
		"up": `{"status":"success","warnings":["partial response"],"data":{"resultType":"vector","result":[]}}`,
	}}
	server := httptest.NewServer(fake)
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	log := logger.NewLogger(zap.New(core), logger.LogLevelWarn)

	samples, err := newTestClient(t, server.URL, log).Query(context.Background(), "up")

	require.NoError(t, err)
	assert.Empty(t, samples)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "partial response", logs.All()[0].ContextMap()["warning"])
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient("", nil, nopLogger())
	assert.Error(t, err)
}

func TestSamplesFromValue_Unsupported(t *testing.T) {
	_, err := samplesFromValue(model.Matrix{})
	assert.Error(t, err)

	samples, err := samplesFromValue(nil)
	assert.NoError(t, err)
	assert.Nil(t, samples)
}
