// loadtest/report.go
package loadtest

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// TargetResult aggregates one batch. Succeeded + Timeouts + TransportErrors + StatusErrors + Canceled == Sent.
type TargetResult struct {
	TargetName      string
	Sent            int
	Succeeded       int
	Timeouts        int
	TransportErrors int
	StatusErrors    int
	Canceled        int
	Elapsed         time.Duration
	PeakInFlight    int
	AverageWait     time.Duration // mean time a request waited for a concurrency token
	MeanLatency     time.Duration
	MaxLatency      time.Duration

	totalLatency time.Duration
}

// SuccessPercent returns the batch success rate as a percentage, 0 when nothing was sent.
func (r TargetResult) SuccessPercent() float64 {
	return Percent(r.Succeeded, r.Sent)
}

func (r *TargetResult) record(o Outcome) {
	r.Sent++
	switch {
	case o.Success:
		r.Succeeded++
	case o.Failure == FailureTimeout:
		r.Timeouts++
	case o.Failure == FailureStatus:
		r.StatusErrors++
	case o.Failure == FailureCanceled:
		r.Canceled++
	default:
		r.TransportErrors++
	}

	if o.Failure != FailureCanceled {
		r.totalLatency += o.Latency
		if o.Latency > r.MaxLatency {
			r.MaxLatency = o.Latency
		}
		if completed := r.Sent - r.Canceled; completed > 0 {
			r.MeanLatency = r.totalLatency / time.Duration(completed)
		}
	}
}

// RunReport is the outcome of a whole run. Results keep the configured target order.
type RunReport struct {
	RunID            string
	Results          []TargetResult
	OverallSent      int
	OverallSucceeded int
	Elapsed          time.Duration
	Threshold        float64
	Passed           bool
}

// NewRunReport sums the per-target results and applies the threshold verdict.
func NewRunReport(runID string, results []TargetResult, elapsed time.Duration, threshold float64) *RunReport {
	report := &RunReport{
		RunID:     runID,
		Results:   results,
		Elapsed:   elapsed,
		Threshold: threshold,
	}
	for _, r := range results {
		report.OverallSent += r.Sent
		report.OverallSucceeded += r.Succeeded
	}
	report.Passed = Passed(report.OverallSucceeded, report.OverallSent, threshold)
	return report
}

// Passed reports whether succeeded/sent reaches threshold percent. An empty run passes.
// The comparison is done without division so a result exactly on the threshold is not lost to rounding.
func Passed(succeeded, sent int, threshold float64) bool {
	if sent == 0 {
		return true
	}
	return float64(succeeded)*100 >= threshold*float64(sent)
}

// Percent returns succeeded/sent*100, or 0 when sent is 0.
func Percent(succeeded, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(succeeded) / float64(sent) * 100
}

// SuccessPercent returns the overall success rate.
func (r *RunReport) SuccessPercent() float64 {
	return Percent(r.OverallSucceeded, r.OverallSent)
}

// ExitCode returns the process exit code for the report: 0 when passed, 1 otherwise.
func (r *RunReport) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}

// Render writes the human-readable summary, one line per target followed by the overall line.
func (r *RunReport) Render(w io.Writer) error {
	for _, result := range r.Results {
		if _, err := fmt.Fprintf(w, "Service %s: %.2f%% success (%d/%d)\n",
			result.TargetName, result.SuccessPercent(), result.Succeeded, result.Sent); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Overall: %.2f%% success rate in %.1fs\n", r.SuccessPercent(), r.Elapsed.Seconds())
	return err
}

type jsonTargetResult struct {
	Name            string  `json:"name"`
	Sent            int     `json:"sent"`
	Succeeded       int     `json:"succeeded"`
	SuccessPct      float64 `json:"success_pct"`
	Timeouts        int     `json:"timeouts"`
	TransportErrors int     `json:"transport_errors"`
	StatusErrors    int     `json:"status_errors"`
	Canceled        int     `json:"canceled"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	PeakInFlight    int     `json:"peak_in_flight"`
	AverageWaitMs   float64 `json:"average_wait_ms"`
	MeanLatencyMs   float64 `json:"mean_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
}

type jsonRunReport struct {
	RunID            string             `json:"run_id"`
	Results          []jsonTargetResult `json:"results"`
	OverallSent      int                `json:"overall_sent"`
	OverallSucceeded int                `json:"overall_succeeded"`
	SuccessPct       float64            `json:"success_pct"`
	ElapsedSeconds   float64            `json:"elapsed_seconds"`
	Threshold        float64            `json:"threshold"`
	Passed           bool               `json:"passed"`
}

// WriteJSON writes the report as a single JSON document.
func (r *RunReport) WriteJSON(w io.Writer) error {
	out := jsonRunReport{
		RunID:            r.RunID,
		Results:          make([]jsonTargetResult, 0, len(r.Results)),
		OverallSent:      r.OverallSent,
		OverallSucceeded: r.OverallSucceeded,
		SuccessPct:       r.SuccessPercent(),
		ElapsedSeconds:   r.Elapsed.Seconds(),
		Threshold:        r.Threshold,
		Passed:           r.Passed,
	}
	for _, result := range r.Results {
		out.Results = append(out.Results, jsonTargetResult{
			Name:            result.TargetName,
			Sent:            result.Sent,
			Succeeded:       result.Succeeded,
			SuccessPct:      result.SuccessPercent(),
			Timeouts:        result.Timeouts,
			TransportErrors: result.TransportErrors,
			StatusErrors:    result.StatusErrors,
			Canceled:        result.Canceled,
			ElapsedSeconds:  result.Elapsed.Seconds(),
			PeakInFlight:    result.PeakInFlight,
			AverageWaitMs:   milliseconds(result.AverageWait),
			MeanLatencyMs:   milliseconds(result.MeanLatency),
			MaxLatencyMs:    milliseconds(result.MaxLatency),
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// Write renders the report in the given format, ReportFormatText or ReportFormatJSON.
func (r *RunReport) Write(w io.Writer, format string) error {
	if format == ReportFormatJSON {
		return r.WriteJSON(w)
	}
	return r.Render(w)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
