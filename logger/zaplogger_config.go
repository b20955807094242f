// zaplogger_config.go
package logger

// Ref: https://betterstack.com/community/guides/logging/go/zap/#logging-errors-with-zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogOutputJSON    = "json"
	LogOutputConsole = "console"
)

// BuildLogger creates and returns a new zap logger instance.
// It configures the logger with RFC3339 timestamps and a custom core that keeps the 'run_id' and 'target'
// fields at the end of each entry. Entries are written to stderr so that stdout carries only the run report.
// The function panics if the logger cannot be initialized.
func BuildLogger(logLevel LogLevel, encoding string, logConsoleSeparator string) Logger {

	// Set up custom encoder configuration
	encoderCfg := zap.NewProductionEncoderConfig()

	// Time settings
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder

	// Log level settings
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if encoding == LogOutputConsole {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderCfg.ConsoleSeparator = logConsoleSeparator
	}

	encoderCfg.MessageKey = "msg"
	encoderCfg.LevelKey = "level"
	encoderCfg.NameKey = "logger"
	encoderCfg.CallerKey = "caller"
	encoderCfg.StacktraceKey = "stacktrace"
	encoderCfg.LineEnding = zapcore.DefaultLineEnding
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.EncodeName = zapcore.FullNameEncoder

	if encoding != LogOutputJSON && encoding != LogOutputConsole {
		encoding = LogOutputConsole
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(convertToZapLevel(logLevel)),
		Development:       false,
		Encoding:          encoding,
		DisableCaller:     true,
		DisableStacktrace: true,
		Sampling:          nil,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	logger := zap.Must(config.Build())

	wrappedCore := &customCore{logger.Core()}
	wrappedLogger := zap.New(wrappedCore)

	return &defaultLogger{
		logger:   wrappedLogger,
		logLevel: logLevel,
	}
}

// convertToZapLevel converts the custom LogLevel to a zapcore.Level
func convertToZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelInfo:
		return zap.InfoLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	case LogLevelDPanic:
		return zap.DPanicLevel
	case LogLevelPanic:
		return zap.PanicLevel
	case LogLevelFatal:
		return zap.FatalLevel
	default:
		return zap.InfoLevel // Default to InfoLevel
	}
}
