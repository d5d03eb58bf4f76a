// Package logging builds the zap-backed loggers used by the point cloud algorithms.
package logging

import (
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger("pcgeom")
)

// ReplaceGlobal replaces the global logger.
func ReplaceGlobal(logger golog.Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// Global returns the global logger.
func Global() golog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// OrGlobal returns logger, or the global logger if logger is nil.
func OrGlobal(logger golog.Logger) golog.Logger {
	if logger == nil {
		return Global()
	}
	return logger
}

// NewLoggerConfig returns a new default logger config.
func NewLoggerConfig() zap.Config {
	// from https://github.com/uber-go/zap/blob/2314926ec34c23ee21f3dd4399438469668f8097/config.go#L135
	// but disable stacktraces, use same keys as prod, and color levels.
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// NewLogger returns a new logger that outputs Info+ logs to stderr.
func NewLogger(name string) golog.Logger {
	return fromConfig(NewLoggerConfig(), name)
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stderr.
func NewDebugLogger(name string) golog.Logger {
	cfg := NewLoggerConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	return fromConfig(cfg, name)
}

// NewBlankLogger returns a logger that drops everything.
func NewBlankLogger(name string) golog.Logger {
	return zap.NewNop().Sugar().Named(name)
}

func fromConfig(cfg zap.Config, name string) golog.Logger {
	logger, err := cfg.Build()
	if err != nil {
		// only happens with unopenable output paths, which are fixed above
		return NewBlankLogger(name)
	}
	return logger.Sugar().Named(name)
}
