// cmd/profiler/main.go
// Command profiler queries Prometheus for the simulated services' request metrics over a recent window
// and prints average latency, throughput and errors, latency percentiles and any anomalous instances.
//
// Usage:
//
//	profiler [flags] [prometheus_base_url]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deploymenttheory/go-api-load-driver/loadtest"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/profiler"
	"go.uber.org/zap"
)

// cliConfig holds the command line settings of one profiling pass.
type cliConfig struct {
	profiler.Config
	format        string
	logLevel      string
	logFormat     string
	failOnAnomaly bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := loadtest.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	config, err := parseFlags(args, stderr)
	if err != nil {
		return 1
	}

	log := logger.BuildLogger(logger.ParseLogLevelFromString(config.logLevel), config.logFormat, "	")
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := profile(ctx, config.Config, log)
	if err != nil {
		log.Error("Profiling failed", zap.Error(err))
		fmt.Fprintf(stderr, "profiling failed: %v\n", err)
		return 1
	}

	if err := report.Write(stdout, config.format); err != nil {
		log.Error("Failed to write report", zap.Error(err))
		return 1
	}
	if config.failOnAnomaly && report.HasAnomalies() {
		return 1
	}
	return 0
}

// profile builds the Prometheus client over the load client's transport and runs one pass.
func profile(ctx context.Context, config profiler.Config, log logger.Logger) (*profiler.Report, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	clientConfig := loadtest.DefaultRunConfig()
	clientConfig.MaxConcurrency = 1
	clientConfig.Timeout = config.QueryTimeout
	clientConfig.ProxyURL = config.ProxyURL
	clientConfig.HideSensitiveData = config.HideSensitiveData

	httpClient, err := loadtest.BuildHTTPClient(clientConfig, log)
	if err != nil {
		return nil, err
	}
	defer httpClient.CloseIdleConnections()

	client, err := profiler.NewClient(config.PrometheusURL, httpClient, log)
	if err != nil {
		return nil, err
	}
	return profiler.NewProfiler(client, config, log).Run(ctx)
}

func parseFlags(args []string, stderr io.Writer) (cliConfig, error) {
	flags := flag.NewFlagSet("profiler", flag.ContinueOnError)
	flags.SetOutput(stderr)

	config := cliConfig{Config: profiler.DefaultConfig()}
	flags.StringVar(&config.PrometheusURL, "prometheus-url", envOr("PROMETHEUS_URL", profiler.DefaultPrometheusURL), "Prometheus base URL")
	flags.DurationVar(&config.Window, "window", profiler.DefaultWindow, "metrics window, e.g. 1m or 5m")
	flags.DurationVar(&config.QueryTimeout, "query-timeout", profiler.DefaultQueryTimeout, "timeout of each Prometheus query")
	flags.Float64Var(&config.LatencyThreshold, "latency-threshold", profiler.DefaultLatencyThreshold, "mean latency in seconds above which an instance is anomalous")
	flags.Float64Var(&config.ErrorThreshold, "error-threshold", 0, "errors per window above which an instance is anomalous, 0 to disable")
	flags.IntVar(&config.PercentileWindow, "percentile-window", profiler.DefaultPercentileWindow, "number of latency samples kept for percentiles")
	flags.StringVar(&config.ProxyURL, "proxy-url", envOr("PROXY_URL", ""), "outbound proxy for Prometheus queries")
	flags.BoolVar(&config.HideSensitiveData, "hide-sensitive-data", loadtest.DefaultHideSensitiveData, "redact credentials in logs")
	flags.StringVar(&config.format, "format", envOr("REPORT_FORMAT", profiler.ReportFormatText), "report format: text or json")
	flags.StringVar(&config.logLevel, "log-level", envOr("LOG_LEVEL", "LogLevelWarn"), "log level, e.g. LogLevelDebug")
	flags.StringVar(&config.logFormat, "log-format", envOr("LOG_OUTPUT_FORMAT", logger.LogOutputConsole), "log output format: json or console")
	flags.BoolVar(&config.failOnAnomaly, "fail-on-anomaly", false, "exit 1 when any anomaly is detected")
	if err := flags.Parse(args); err != nil {
		return config, err
	}

	switch flags.NArg() {
	case 0:
	case 1:
		config.PrometheusURL = flags.Arg(0)
	default:
		fmt.Fprintln(stderr, "at most one Prometheus base URL may be given")
		return config, fmt.Errorf("unexpected arguments: %v", flags.Args()[1:])
	}

	config.PrometheusURL = strings.TrimRight(config.PrometheusURL, "/")
	config.format = strings.ToLower(config.format)
	config.logFormat = strings.ToLower(config.logFormat)
	if config.format != profiler.ReportFormatText && config.format != profiler.ReportFormatJSON {
		fmt.Fprintf(stderr, "unknown report format %q\n", config.format)
		return config, fmt.Errorf("unknown report format %q", config.format)
	}
	return config, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
