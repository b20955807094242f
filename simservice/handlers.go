// simservice/handlers.go
package simservice

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/fanout"
	"github.com/deploymenttheory/go-api-load-driver/loadtest"
)

// handleData serves service1 GET /data, failing with 500 at DataFailureRate.
func handleData(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.Random() < opts.DataFailureRate {
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Data retrieved successfully from Service 1"})
	}
}

// handleProcess serves service2 GET /process. It waits a uniformly random time between
// ProcessMinLatency and ProcessMaxLatency, then fails with 400 at ProcessFailureRate.
func handleProcess(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latency := opts.ProcessMinLatency
		if spread := opts.ProcessMaxLatency - opts.ProcessMinLatency; spread > 0 {
			latency += time.Duration(opts.Random() * float64(spread))
		}
		opts.Sleep(r.Context(), latency)

		if opts.Random() < opts.ProcessFailureRate {
			writeDetail(w, http.StatusBadRequest, "Bad Request")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Data processed successfully by Service 2"})
	}
}

// submitRequest is the service3 body. A missing payload is treated as an empty object.
type submitRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// handleSubmit serves service3 POST /submit. The body must be a JSON object; its payload, when present,
// must be an object. Anything else is rejected with 422.
func handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body *submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}
	if body == nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body: expected a JSON object")
		return
	}
	if body.Payload != nil {
		var payload map[string]any
		if err := json.Unmarshal(body.Payload, &payload); err != nil || payload == nil {
			writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body: payload must be an object")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Data submitted successfully to Service 3"})
}

// fanoutResponse is the body of service1 GET /fanout.
type fanoutResponse struct {
	Service2 bool `json:"service2"`
	Service3 bool `json:"service3"`
	Success  int  `json:"success"`
}

type fanoutHandler struct {
	caller  *fanout.Caller
	targets []loadtest.Target
}

// newFanoutHandler wires service1 GET /fanout: one call to service2 GET /process and one to
// service3 POST /submit, concurrently, each retried once.
func newFanoutHandler(opts Options) (*fanoutHandler, error) {
	config := loadtest.DefaultRunConfig()
	config.Timeout = opts.FanoutTimeout
	config.MaxConcurrency = 100

	client, err := loadtest.BuildHTTPClient(config, opts.Logger)
	if err != nil {
		return nil, err
	}
	if transport, ok := client.Transport.(*http.Transport); ok {
		transport.DialContext = (&net.Dialer{Timeout: opts.FanoutConnect, KeepAlive: 30 * time.Second}).DialContext
	}

	return &fanoutHandler{
		caller: fanout.NewCaller(loadtest.NewHTTPExecutor(client, config, opts.Logger), opts.Logger),
		targets: []loadtest.Target{
			{Name: Service2, URL: joinURL(opts.Service2URL, "/process"), Method: http.MethodGet},
			{Name: Service3, URL: joinURL(opts.Service3URL, "/submit"), Method: http.MethodPost, Body: json.RawMessage(loadtest.DefaultPostBody)},
		},
	}, nil
}

func (h *fanoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results := h.caller.FanOut(r.Context(), h.targets...)

	resp := fanoutResponse{Service2: results[Service2], Service3: results[Service3]}
	if fanout.AllSucceeded(results) {
		resp.Success = 1
	}
	writeJSON(w, http.StatusOK, resp)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
