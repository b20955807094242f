// cmd/loaddriver/main.go
// Command loaddriver runs a bounded-concurrency load test against the configured targets, prints a
// per-target summary and exits 0 when the overall success rate meets the threshold, 1 otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploymenttheory/go-api-load-driver/loadtest"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/version"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("loaddriver", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", "", "JSON configuration file; environment variables are used when empty")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	showVersion := flags.Bool("version", false, "print the version and exit")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.GetUserAgentHeader())
		return 0
	}

	if err := loadtest.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	config, targets, err := loadConfiguration(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	log := logger.BuildLogger(logger.ParseLogLevelFromString(config.LogLevel), config.LogOutputFormat, config.LogConsoleSeparator)
	defer logger.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := loadtest.NewDriver(*config, targets, log).Run(ctx)
	if err != nil {
		log.Error("Load test aborted", zap.Error(err))
		fmt.Fprintf(stderr, "load test aborted: %v\n", err)
		return 1
	}

	if err := report.Write(stdout, config.ReportFormat); err != nil {
		log.Error("Failed to write report", zap.Error(err))
		return 1
	}
	return report.ExitCode()
}

// loadConfiguration reads the run settings from configFile when given, else from the environment.
// Targets come from the file when it lists any, else from TARGETS_FILE or the SERVICE*_URL variables.
func loadConfiguration(configFile string) (*loadtest.RunConfig, []loadtest.Target, error) {
	if configFile == "" {
		config, err := loadtest.LoadConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		targets, err := loadtest.LoadTargets()
		if err != nil {
			return nil, nil, err
		}
		return config, targets, nil
	}

	config, targets, err := loadtest.LoadConfigFromFile(configFile)
	if err != nil {
		return nil, nil, err
	}
	if targets == nil {
		if targets, err = loadtest.LoadTargets(); err != nil {
			return nil, nil, err
		}
	}
	return config, targets, nil
}
