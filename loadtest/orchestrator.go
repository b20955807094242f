// loadtest/orchestrator.go
/* Package loadtest drives bounded-concurrency HTTP load against an ordered list of targets and
judges the run against a success threshold. Targets are processed one at a time; within a target,
requests run concurrently up to the configured limit. */
package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Driver runs a load test. Executor and NewClient are optional; when Executor is nil each target gets an
// HTTPExecutor over a fresh client from NewClient (BuildHTTPClient by default).
type Driver struct {
	Config   RunConfig
	Targets  []Target
	Logger   logger.Logger
	Executor Executor

	NewClient func(RunConfig, logger.Logger) (*http.Client, error)
}

// NewDriver creates a Driver that issues real HTTP requests.
func NewDriver(config RunConfig, targets []Target, log logger.Logger) *Driver {
	return &Driver{
		Config:    config,
		Targets:   targets,
		Logger:    log,
		NewClient: BuildHTTPClient,
	}
}

// Run validates the configuration, optionally waits for the targets to become ready, then runs one batch
// per target in order. Nothing is sent when validation fails. If ctx is canceled or the run deadline
// passes before the last batch completes, Run returns an error and no report.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	if err := d.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ValidateTargets(d.Targets); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.New().String()
	log := d.Logger.With(zap.String("run_id", runID))

	if d.Config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Config.RunTimeout)
		defer cancel()
	}

	log.Info("Load test starting",
		zap.Int("targets", len(d.Targets)),
		zap.Int("requests_per_target", d.Config.RequestsPerTarget),
		zap.Int("max_concurrency", d.Config.MaxConcurrency),
		zap.Duration("timeout", d.Config.Timeout),
		zap.Float64("success_threshold", d.Config.SuccessThresholdPct),
		zap.Duration("run_timeout", d.Config.RunTimeout),
	)

	if d.Config.WaitForReady {
		if err := d.waitForReady(ctx, log); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	results := make([]TargetResult, 0, len(d.Targets))
	for _, target := range d.Targets {
		result, err := d.runTarget(ctx, target, log)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted during target %s: %w", target.Name, err)
		}
		results = append(results, result)
	}

	report := NewRunReport(runID, results, time.Since(start), d.Config.SuccessThresholdPct)
	log.Info("Load test completed",
		zap.Int("overall_sent", report.OverallSent),
		zap.Int("overall_succeeded", report.OverallSucceeded),
		zap.Float64("success_pct", report.SuccessPercent()),
		zap.Duration("elapsed", report.Elapsed),
		zap.Bool("passed", report.Passed),
	)
	return report, nil
}

func (d *Driver) runTarget(ctx context.Context, target Target, log logger.Logger) (TargetResult, error) {
	exec := d.Executor
	if exec == nil {
		client, err := d.client(log)
		if err != nil {
			return TargetResult{}, err
		}
		defer client.CloseIdleConnections()
		exec = NewHTTPExecutor(client, d.Config, log)
	}
	return RunBatch(ctx, target, d.Config, exec, log), nil
}

func (d *Driver) waitForReady(ctx context.Context, log logger.Logger) error {
	client, err := d.client(log)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	if err := WaitForReady(ctx, client, d.Targets, d.Config.ReadinessAttempts, log); err != nil {
		log.Error("Targets not ready, load test not started", zap.Error(err))
		return fmt.Errorf("readiness check failed: %w", err)
	}
	return nil
}

func (d *Driver) client(log logger.Logger) (*http.Client, error) {
	newClient := d.NewClient
	if newClient == nil {
		newClient = BuildHTTPClient
	}
	client, err := newClient(d.Config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}
	return client, nil
}
