// loadtest/config.go
// Description: This file contains functions to load and validate the load driver configuration from environment variables or a JSON file.
package loadtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deploymenttheory/go-api-load-driver/logger"
	"github.com/joho/godotenv"
)

const (
	DefaultRequestsPerTarget   = 1000
	DefaultMaxConcurrency      = 200
	DefaultTimeout             = 1 * time.Second
	DefaultSuccessThresholdPct = 99.5
	DefaultRunTimeout          = 10 * time.Minute
	DefaultWaitForReady        = false
	DefaultReadinessAttempts   = 5
	DefaultFollowRedirects     = false
	DefaultMaxRedirects        = 5
	DefaultLogLevelString      = "LogLevelWarn"
	DefaultLogOutputFormat     = logger.LogOutputConsole
	DefaultLogConsoleSeparator = "	"
	DefaultHideSensitiveData   = true
	DefaultReportFormat        = ReportFormatText
	DefaultService1URL         = "http://localhost:8000/data"
	DefaultService2URL         = "http://localhost:8001/process"
	DefaultService3URL         = "http://localhost:8002/submit"
	ConfigFileExtension        = ".json"
)

const (
	ReportFormatText = "text"
	ReportFormatJSON = "json"
)

// RunConfig holds every setting of a load test run. Timeout applies per request, to both connection
// establishment and the whole exchange. RunTimeout bounds the entire run; zero disables it.
type RunConfig struct {
	RequestsPerTarget   int
	MaxConcurrency      int
	Timeout             time.Duration
	SuccessThresholdPct float64
	RunTimeout          time.Duration

	// Readiness
	WaitForReady      bool
	ReadinessAttempts int

	// Transport
	FollowRedirects bool
	MaxRedirects    int
	ProxyURL        string

	// Log
	LogLevel            string
	LogOutputFormat     string // Output format of the logs. Use "json" for JSON format, "console" for human-readable format
	LogConsoleSeparator string
	HideSensitiveData   bool

	ReportFormat string
}

// DefaultRunConfig returns a RunConfig populated entirely with defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		RequestsPerTarget:   DefaultRequestsPerTarget,
		MaxConcurrency:      DefaultMaxConcurrency,
		Timeout:             DefaultTimeout,
		SuccessThresholdPct: DefaultSuccessThresholdPct,
		RunTimeout:          DefaultRunTimeout,
		WaitForReady:        DefaultWaitForReady,
		ReadinessAttempts:   DefaultReadinessAttempts,
		FollowRedirects:     DefaultFollowRedirects,
		MaxRedirects:        DefaultMaxRedirects,
		LogLevel:            DefaultLogLevelString,
		LogOutputFormat:     DefaultLogOutputFormat,
		LogConsoleSeparator: DefaultLogConsoleSeparator,
		HideSensitiveData:   DefaultHideSensitiveData,
		ReportFormat:        DefaultReportFormat,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are given) into the process
// environment. Variables that are already set win, and a missing file is not an error.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// LoadConfigFromEnv loads the run configuration from environment variables. Unset variables take their
// default; set but unparseable variables are configuration errors. The result is validated.
func LoadConfigFromEnv() (*RunConfig, error) {
	config := DefaultRunConfig()
	var err error

	if config.RequestsPerTarget, err = getEnvAsInt("TOTAL_PER_SERVICE", DefaultRequestsPerTarget); err != nil {
		return nil, err
	}
	if config.MaxConcurrency, err = getEnvAsInt("CONCURRENCY", DefaultMaxConcurrency); err != nil {
		return nil, err
	}
	if config.Timeout, err = getEnvAsSeconds("TIMEOUT", DefaultTimeout); err != nil {
		return nil, err
	}
	if config.SuccessThresholdPct, err = getEnvAsFloat("SUCCESS_THRESHOLD", DefaultSuccessThresholdPct); err != nil {
		return nil, err
	}
	if config.RunTimeout, err = getEnvAsDuration("RUN_TIMEOUT", DefaultRunTimeout); err != nil {
		return nil, err
	}
	if config.WaitForReady, err = getEnvAsBool("WAIT_FOR_READY", DefaultWaitForReady); err != nil {
		return nil, err
	}
	if config.ReadinessAttempts, err = getEnvAsInt("READINESS_ATTEMPTS", DefaultReadinessAttempts); err != nil {
		return nil, err
	}
	if config.FollowRedirects, err = getEnvAsBool("FOLLOW_REDIRECTS", DefaultFollowRedirects); err != nil {
		return nil, err
	}
	if config.MaxRedirects, err = getEnvAsInt("MAX_REDIRECTS", DefaultMaxRedirects); err != nil {
		return nil, err
	}
	if config.HideSensitiveData, err = getEnvAsBool("HIDE_SENSITIVE_DATA", DefaultHideSensitiveData); err != nil {
		return nil, err
	}

	config.ProxyURL = getEnvAsString("PROXY_URL", "")
	config.LogLevel = getEnvAsString("LOG_LEVEL", DefaultLogLevelString)
	config.LogOutputFormat = strings.ToLower(getEnvAsString("LOG_OUTPUT_FORMAT", DefaultLogOutputFormat))
	config.LogConsoleSeparator = getEnvAsString("LOG_CONSOLE_SEPARATOR", DefaultLogConsoleSeparator)
	config.ReportFormat = strings.ToLower(getEnvAsString("REPORT_FORMAT", DefaultReportFormat))

	if err := validateRunConfig(config); err != nil {
		return nil, err
	}
	return &config, nil
}

// fileConfig mirrors RunConfig for JSON files. Pointer fields distinguish "absent" from an explicit zero,
// which matters for settings such as success_threshold where zero is a legal value.
type fileConfig struct {
	RequestsPerTarget   *int     `json:"total_per_service"`
	MaxConcurrency      *int     `json:"concurrency"`
	TimeoutSeconds      *float64 `json:"timeout_seconds"`
	SuccessThresholdPct *float64 `json:"success_threshold"`
	RunTimeout          *string  `json:"run_timeout"`
	WaitForReady        *bool    `json:"wait_for_ready"`
	ReadinessAttempts   *int     `json:"readiness_attempts"`
	FollowRedirects     *bool    `json:"follow_redirects"`
	MaxRedirects        *int     `json:"max_redirects"`
	ProxyURL            string   `json:"proxy_url"`
	LogLevel            string   `json:"log_level"`
	LogOutputFormat     string   `json:"log_output_format"`
	LogConsoleSeparator string   `json:"log_console_separator"`
	HideSensitiveData   *bool    `json:"hide_sensitive_data"`
	ReportFormat        string   `json:"report_format"`
	Targets             []Target `json:"targets"`
}

// LoadConfigFromFile loads a run configuration and, optionally, a target list from a JSON file.
// Fields absent from the file take their default values. A nil target slice means the file did not
// name any targets.
func LoadConfigFromFile(path string) (*RunConfig, []Target, error) {
	fc, err := readFileConfig(path)
	if err != nil {
		return nil, nil, err
	}

	config := DefaultRunConfig()
	if err := setValuesFromFile(&config, fc); err != nil {
		return nil, nil, err
	}
	if err := validateRunConfig(config); err != nil {
		return nil, nil, err
	}

	targets := normalizeTargets(fc.Targets)
	if targets != nil {
		if err := ValidateTargets(targets); err != nil {
			return nil, nil, err
		}
	}
	return &config, targets, nil
}

// setValuesFromFile overlays every field present in fc onto config.
func setValuesFromFile(config *RunConfig, fc *fileConfig) error {
	setInt(&config.RequestsPerTarget, fc.RequestsPerTarget)
	setInt(&config.MaxConcurrency, fc.MaxConcurrency)
	if fc.TimeoutSeconds != nil {
		config.Timeout = secondsToDuration(*fc.TimeoutSeconds)
	}
	if fc.SuccessThresholdPct != nil {
		config.SuccessThresholdPct = *fc.SuccessThresholdPct
	}
	if fc.RunTimeout != nil {
		d, err := time.ParseDuration(*fc.RunTimeout)
		if err != nil {
			return fmt.Errorf("invalid run_timeout %q: %w", *fc.RunTimeout, err)
		}
		config.RunTimeout = d
	}
	setBool(&config.WaitForReady, fc.WaitForReady)
	setInt(&config.ReadinessAttempts, fc.ReadinessAttempts)
	setBool(&config.FollowRedirects, fc.FollowRedirects)
	setInt(&config.MaxRedirects, fc.MaxRedirects)
	setBool(&config.HideSensitiveData, fc.HideSensitiveData)
	setString(&config.ProxyURL, fc.ProxyURL)
	setString(&config.LogLevel, fc.LogLevel)
	setString(&config.LogOutputFormat, strings.ToLower(fc.LogOutputFormat))
	setString(&config.LogConsoleSeparator, fc.LogConsoleSeparator)
	setString(&config.ReportFormat, strings.ToLower(fc.ReportFormat))
	return nil
}

// LoadTargets resolves the target list: TARGETS_FILE when set, otherwise the default three services
// with URLs from SERVICE1_URL, SERVICE2_URL and SERVICE3_URL.
func LoadTargets() ([]Target, error) {
	if path := getEnvAsString("TARGETS_FILE", ""); path != "" {
		return LoadTargetsFromFile(path)
	}

	targets := DefaultTargets(
		getEnvAsString("SERVICE1_URL", DefaultService1URL),
		getEnvAsString("SERVICE2_URL", DefaultService2URL),
		getEnvAsString("SERVICE3_URL", DefaultService3URL),
	)
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// LoadTargetsFromFile reads a JSON file holding either a bare array of targets or an object with a
// "targets" array.
func LoadTargetsFromFile(path string) ([]Target, error) {
	absPath, err := validateFilePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid file path: %v", err)
	}

	byteValue, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("could not read file: %w", err)
	}

	var targets []Target
	if err := json.Unmarshal(byteValue, &targets); err != nil {
		var wrapped struct {
			Targets []Target `json:"targets"`
		}
		if err2 := json.Unmarshal(byteValue, &wrapped); err2 != nil {
			return nil, fmt.Errorf("could not unmarshal JSON: %v", err)
		}
		targets = wrapped.Targets
	}

	targets = normalizeTargets(targets)
	if err := ValidateTargets(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func readFileConfig(path string) (*fileConfig, error) {
	absPath, err := validateFilePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid file path: %v", err)
	}

	byteValue, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("could not read file: %w", err)
	}

	var fc fileConfig
	if err := json.Unmarshal(byteValue, &fc); err != nil {
		return nil, fmt.Errorf("could not unmarshal JSON: %v", err)
	}
	return &fc, nil
}

// normalizeTargets upper-cases methods and defaults an empty method to GET, or POST when a body is set.
func normalizeTargets(targets []Target) []Target {
	if targets == nil {
		return nil
	}
	out := make([]Target, len(targets))
	for i, t := range targets {
		t.Method = strings.ToUpper(strings.TrimSpace(t.Method))
		if t.Method == "" {
			t.Method = http.MethodGet
			if len(t.Body) > 0 {
				t.Method = http.MethodPost
			}
		}
		out[i] = t
	}
	return out
}

// Validate checks the configuration. Configuration errors abort the run before any request is sent.
func (c RunConfig) Validate() error {
	return validateRunConfig(c)
}

func validateRunConfig(config RunConfig) error {
	if config.RequestsPerTarget < 1 {
		return fmt.Errorf("requests per target must be greater than 0, got %d", config.RequestsPerTarget)
	}
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("concurrency must be greater than 0, got %d", config.MaxConcurrency)
	}
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0, got %s", config.Timeout)
	}
	if math.IsNaN(config.SuccessThresholdPct) || config.SuccessThresholdPct < 0 || config.SuccessThresholdPct > 100 {
		return fmt.Errorf("success threshold must be between 0 and 100, got %g", config.SuccessThresholdPct)
	}
	if config.RunTimeout < 0 {
		return errors.New("run timeout cannot be less than 0")
	}
	if config.ReadinessAttempts < 0 {
		return errors.New("readiness attempts cannot be less than 0")
	}
	if config.WaitForReady && config.ReadinessAttempts < 1 {
		return errors.New("readiness attempts must be at least 1 when waiting for readiness")
	}
	if config.MaxRedirects < 0 {
		return errors.New("max redirects cannot be less than 0")
	}
	if config.FollowRedirects && config.MaxRedirects < 1 {
		return errors.New("max redirects cannot be less than 1 when following redirects")
	}
	if parsed := logger.ParseLogLevelFromString(config.LogLevel); parsed == logger.LogLevelNone && config.LogLevel != "LogLevelNone" {
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}
	if config.LogOutputFormat != logger.LogOutputJSON && config.LogOutputFormat != logger.LogOutputConsole {
		return fmt.Errorf("unknown log output format %q, expected json or console", config.LogOutputFormat)
	}
	if config.ReportFormat != ReportFormatText && config.ReportFormat != ReportFormatJSON {
		return fmt.Errorf("unknown report format %q, expected text or json", config.ReportFormat)
	}
	return nil
}

func validateFilePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	for _, element := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if element == ".." {
			return "", fmt.Errorf("invalid path, path traversal patterns detected: %s", path)
		}
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("unable to resolve the absolute path of the configuration file: %s, error: %w", path, err)
	}

	if filepath.Ext(absPath) != ConfigFileExtension {
		return "", fmt.Errorf("invalid file extension for configuration file: %s, expected .json", path)
	}

	return absPath, nil
}

// Helper function to get environment variable as string or default value
func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as int or default value
func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := getEnvAsString(key, "")
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q is not an integer", key, value)
	}
	return result, nil
}

// Helper function to get environment variable as float or default value
func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := getEnvAsString(key, "")
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("invalid value for %s: %q is not a number", key, value)
	}
	return result, nil
}

// Helper function to get environment variable as bool or default value
func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := getEnvAsString(key, "")
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q is not a boolean", key, value)
	}
	return result, nil
}

// Helper function to get environment variable as a Go duration ("30s", "10m") or default value
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnvAsString(key, "")
	if value == "" {
		return defaultValue, nil
	}
	result, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q is not a duration", key, value)
	}
	return result, nil
}

// Helper function to get environment variable holding seconds as a float ("1.0", "0.25") or default value
func getEnvAsSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	seconds, err := getEnvAsFloat(key, defaultValue.Seconds())
	if err != nil {
		return 0, err
	}
	return secondsToDuration(seconds), nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}
