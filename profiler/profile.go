// profiler/profile.go
/* Package profiler reads the request metrics the simulated services export, through a Prometheus
server, and summarizes one time window: average latency, throughput and errors, latency percentiles
and the instances whose latency or error count crossed a threshold. */
package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
)

const (
	DefaultPrometheusURL    = "http://localhost:9090"
	DefaultWindow           = time.Minute
	DefaultQueryTimeout     = 5 * time.Second
	DefaultLatencyThreshold = 1.0 // seconds
	DefaultPercentileWindow = 100
)

// Report formats.
const (
	ReportFormatText = "text"
	ReportFormatJSON = "json"
)

// Config controls one profiling pass.
type Config struct {
	PrometheusURL string
	Window        time.Duration
	QueryTimeout  time.Duration

	// LatencyThreshold is in seconds. ErrorThreshold is errors per window; 0 disables error anomalies.
	LatencyThreshold float64
	ErrorThreshold   float64
	PercentileWindow int

	ProxyURL          string
	HideSensitiveData bool
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return Config{
		PrometheusURL:    DefaultPrometheusURL,
		Window:           DefaultWindow,
		QueryTimeout:     DefaultQueryTimeout,
		LatencyThreshold: DefaultLatencyThreshold,
		PercentileWindow: DefaultPercentileWindow,
	}
}

// Validate checks the configuration before any query is sent.
func (c Config) Validate() error {
	if c.PrometheusURL == "" {
		return errors.New("prometheus URL is required")
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s, got %s", c.Window)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be greater than 0, got %s", c.QueryTimeout)
	}
	if math.IsNaN(c.LatencyThreshold) || c.LatencyThreshold < 0 {
		return fmt.Errorf("latency threshold cannot be negative, got %g", c.LatencyThreshold)
	}
	if math.IsNaN(c.ErrorThreshold) || c.ErrorThreshold < 0 {
		return fmt.Errorf("error threshold cannot be negative, got %g", c.ErrorThreshold)
	}
	if c.PercentileWindow < 1 {
		return fmt.Errorf("percentile window must be at least 1, got %d", c.PercentileWindow)
	}
	return nil
}

// Queries holds the PromQL run for one window.
type Queries struct {
	Latency    string
	Throughput string
	Errors     string
}

// QueriesFor builds the per-instance queries over window: mean request latency from the latency
// histogram, requests served and errors returned.
func QueriesFor(window time.Duration) Queries {
	w := model.Duration(window).String()
	return Queries{
		Latency: fmt.Sprintf(
			"sum by (instance) (rate(http_request_latency_seconds_sum[%s])) / sum by (instance) (rate(http_request_latency_seconds_count[%s]))",
			w, w),
		Throughput: fmt.Sprintf("sum by (instance) (increase(http_requests_total[%s]))", w),
		Errors:     fmt.Sprintf("sum by (instance) (increase(http_errors_total[%s]))", w),
	}
}

// Report is the outcome of one profiling pass.
type Report struct {
	Window            time.Duration `json:"-"`
	AverageLatency    float64       `json:"average_latency_seconds"`
	AverageThroughput float64       `json:"average_throughput"`
	AverageErrors     float64       `json:"average_errors"`
	P50               float64       `json:"latency_p50_seconds"`
	P95               float64       `json:"latency_p95_seconds"`
	P99               float64       `json:"latency_p99_seconds"`
	LatencyThreshold  float64       `json:"latency_threshold_seconds"`
	LatencyAnomalies  []string      `json:"latency_anomalies"`
	ErrorThreshold    float64       `json:"error_threshold,omitempty"`
	ErrorAnomalies    []string      `json:"error_anomalies,omitempty"`
}

// HasAnomalies reports whether any instance crossed a threshold.
func (r *Report) HasAnomalies() bool {
	return len(r.LatencyAnomalies) > 0 || len(r.ErrorAnomalies) > 0
}

// Profiler runs the window queries through a Querier and analyses the results.
type Profiler struct {
	Querier Querier
	Config  Config
	Logger  logger.Logger
}

// NewProfiler creates a Profiler.
func NewProfiler(querier Querier, config Config, log logger.Logger) *Profiler {
	return &Profiler{Querier: querier, Config: config, Logger: log}
}

// Run validates the configuration, runs the latency, throughput and error queries in that order and
// builds the report. Any failed query aborts the pass.
func (p *Profiler) Run(ctx context.Context) (*Report, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	queries := QueriesFor(p.Config.Window)

	latency, err := p.query(ctx, "latency", queries.Latency)
	if err != nil {
		return nil, err
	}
	throughput, err := p.query(ctx, "throughput", queries.Throughput)
	if err != nil {
		return nil, err
	}
	errorCounts, err := p.query(ctx, "errors", queries.Errors)
	if err != nil {
		return nil, err
	}

	percentiles := NewRollingPercentile(p.Config.PercentileWindow)
	for _, s := range latency {
		percentiles.Add(s.Value)
	}

	report := &Report{
		Window:            p.Config.Window,
		AverageLatency:    Average(latency),
		AverageThroughput: Average(throughput),
		AverageErrors:     Average(errorCounts),
		P50:               percentiles.Percentile(0.50),
		P95:               percentiles.Percentile(0.95),
		P99:               percentiles.Percentile(0.99),
		LatencyThreshold:  p.Config.LatencyThreshold,
		LatencyAnomalies:  DetectAnomalies(latency, p.Config.LatencyThreshold),
	}
	if p.Config.ErrorThreshold > 0 {
		report.ErrorThreshold = p.Config.ErrorThreshold
		report.ErrorAnomalies = DetectAnomalies(errorCounts, p.Config.ErrorThreshold)
	}

	if report.HasAnomalies() {
		p.Logger.Warn("Anomalies detected",
			zap.Strings("latency_anomalies", report.LatencyAnomalies),
			zap.Strings("error_anomalies", report.ErrorAnomalies),
		)
	}
	return report, nil
}

func (p *Profiler) query(ctx context.Context, metric, query string) ([]Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Config.QueryTimeout)
	defer cancel()

	samples, err := p.Querier.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", metric, err)
	}
	p.Logger.Debug("Metric query completed",
		zap.String("metric", metric),
		zap.String("query", query),
		zap.Int("samples", len(samples)),
	)
	return samples, nil
}

// Render writes the human-readable report.
func (r *Report) Render(w io.Writer) error {
	window := model.Duration(r.Window).String()
	lines := []string{
		fmt.Sprintf("Average Latency (last %s): %.3f sec", window, r.AverageLatency),
		fmt.Sprintf("Average Throughput (last %s): %.1f requests", window, r.AverageThroughput),
		fmt.Sprintf("Average Error Rate (last %s): %.1f errors", window, r.AverageErrors),
		fmt.Sprintf("Latency P50/P95/P99: %.3f/%.3f/%.3f", r.P50, r.P95, r.P99),
	}
	if len(r.LatencyAnomalies) > 0 {
		lines = append(lines, "Latency anomalies detected on instances: "+strings.Join(r.LatencyAnomalies, " "))
	} else {
		lines = append(lines, "No latency anomalies detected.")
	}
	if r.ErrorThreshold > 0 {
		if len(r.ErrorAnomalies) > 0 {
			lines = append(lines, "Error anomalies detected on instances: "+strings.Join(r.ErrorAnomalies, " "))
		} else {
			lines = append(lines, "No error anomalies detected.")
		}
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	out := struct {
		Window string `json:"window"`
		*Report
	}{Window: model.Duration(r.Window).String(), Report: r}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// Write renders the report in format, text or json.
func (r *Report) Write(w io.Writer, format string) error {
	if format == ReportFormatJSON {
		return r.WriteJSON(w)
	}
	return r.Render(w)
}
