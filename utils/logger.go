package utils

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	once sync.Once
)

// LogOptions controls how the global logger is built
type LogOptions struct {
	Debug       bool
	OutputPaths []string
}

// InitLogger initializes the global logger instance. Only the first call
// builds a logger; later calls return it unchanged.
func InitLogger(opts LogOptions) *zap.Logger {
	once.Do(func() {
		config := zap.NewProductionConfig()
		if opts.Debug {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		config.OutputPaths = []string{"stdout"}
		if len(opts.OutputPaths) > 0 {
			config.OutputPaths = opts.OutputPaths
		}
		config.ErrorOutputPaths = []string{"stderr"}

		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.StacktraceKey = "stacktrace"

		logger, err := config.Build(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		if err != nil {
			panic(err)
		}

		log = logger
	})

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if log == nil {
		return InitLogger(LogOptions{})
	}
	return log
}

// CleanupLogger flushes any buffered log entries
func CleanupLogger() {
	if log != nil {
		_ = log.Sync()
	}
}
