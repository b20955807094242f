// cmd/simservice/main.go
// Command simservice serves one of the simulated load targets until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/loadtest"
	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/deploymenttheory/go-api-load-driver/simservice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 10 * time.Second

// serverConfig holds the command line settings of one service process.
type serverConfig struct {
	service        string
	addr           string
	maxConnections int
	logLevel       string
	logFormat      string
	service2URL    string
	service3URL    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
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
	log = log.With(zap.String("service", config.service))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, config, log, nil); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (serverConfig, error) {
	flags := flag.NewFlagSet("simservice", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var config serverConfig
	flags.StringVar(&config.service, "service", envOr("SERVICE_NAME", simservice.Service1), "service to run: service1, service2 or service3")
	flags.StringVar(&config.addr, "addr", envOr("SERVICE_ADDR", ""), "listen address, defaults to the service's standard port")
	flags.IntVar(&config.maxConnections, "max-connections", 0, "maximum simultaneous connections, 0 for no limit")
	flags.StringVar(&config.logLevel, "log-level", envOr("LOG_LEVEL", "LogLevelInfo"), "log level, e.g. LogLevelDebug")
	flags.StringVar(&config.logFormat, "log-format", envOr("LOG_OUTPUT_FORMAT", logger.LogOutputConsole), "log output format: json or console")
	flags.StringVar(&config.service2URL, "service2-url", envOr("SERVICE2_BASE_URL", simservice.DefaultService2URL), "service2 base URL used by service1 /fanout")
	flags.StringVar(&config.service3URL, "service3-url", envOr("SERVICE3_BASE_URL", simservice.DefaultService3URL), "service3 base URL used by service1 /fanout")
	if err := flags.Parse(args); err != nil {
		return config, err
	}

	config.logFormat = strings.ToLower(config.logFormat)
	if config.addr == "" {
		addr, ok := simservice.DefaultAddrs[config.service]
		if !ok {
			fmt.Fprintf(stderr, "unknown service %q\n", config.service)
			return config, fmt.Errorf("unknown service %q", config.service)
		}
		config.addr = addr
	}
	if config.maxConnections < 0 {
		fmt.Fprintln(stderr, "max-connections cannot be negative")
		return config, errors.New("max-connections cannot be negative")
	}
	return config, nil
}

// serve listens on config.addr and blocks until ctx is done, then shuts down gracefully.
// When ready is non-nil it receives the bound address once the listener is open.
func serve(ctx context.Context, config serverConfig, log logger.Logger, ready chan<- string) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := simservice.NewMetrics(registry)
	if err != nil {
		return err
	}

	router, err := simservice.NewRouter(config.service, simservice.Options{
		Logger:      log,
		Metrics:     metrics,
		Service2URL: config.service2URL,
		Service3URL: config.service3URL,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", config.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.addr, err)
	}
	if config.maxConnections > 0 {
		listener = netutil.LimitListener(listener, config.maxConnections)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	log.Info("Service listening", zap.String("addr", listener.Addr().String()), zap.Int("max_connections", config.maxConnections))
	if ready != nil {
		ready <- listener.Addr().String()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("Shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
